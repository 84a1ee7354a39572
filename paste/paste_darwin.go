//go:build darwin

package paste

import "github.com/micmonay/keybd_event"

func pasteModifier(kb *keybd_event.KeyBonding) { kb.HasSuper(true) }
