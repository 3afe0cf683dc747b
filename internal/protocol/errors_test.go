package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	if !IsKnownCode(ErrProtoBadRequest) {
		t.Errorf("known code rejected")
	}
	if !IsKnownCode("") {
		t.Errorf("empty code should pass")
	}
	if IsKnownCode("E_MADE_UP") {
		t.Errorf("unknown code accepted")
	}
}
