package security

import "testing"

func TestHashToken_Consistent(t *testing.T) {
	token := "refresh-token-value"
	h1 := HashToken(token)
	h2 := HashToken(token)
	if h1 != h2 {
		t.Errorf("HashToken not deterministic: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("HashToken length = %d, want 64 hex chars", len(h1))
	}
}

func TestHashToken_DifferentTokens(t *testing.T) {
	if HashToken("a") == HashToken("b") {
		t.Error("different tokens produced the same hash")
	}
}

func TestTokenHashEqual(t *testing.T) {
	stored := HashToken("csrf-value")
	if !TokenHashEqual("csrf-value", stored) {
		t.Error("TokenHashEqual should match the original value")
	}
	if TokenHashEqual("csrf-value2", stored) {
		t.Error("TokenHashEqual should reject a different value")
	}
	if TokenHashEqual("", "") {
		t.Error("TokenHashEqual should reject an empty stored hash")
	}
}

func TestFingerprintInput(t *testing.T) {
	if got := FingerprintInput("Pixel", "UA1"); got != "PixelUA1" {
		t.Errorf("FingerprintInput = %q, want name followed by agent", got)
	}
	if HashToken(FingerprintInput("Pixel", "UA1")) == HashToken(FingerprintInput("Pixel", "UA2")) {
		t.Error("different user agents produced the same fingerprint")
	}
}
