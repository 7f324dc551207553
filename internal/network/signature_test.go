package network

import (
	"strings"
	"testing"
)

func TestSignAndVerifyPayload(t *testing.T) {
	body := []byte(`{"order":"o-1","amount":"19.99"}`)
	signature := SignPayload("secret", body)
	if len(signature) != 64 {
		t.Fatalf("signature length = %d, want 64", len(signature))
	}
	if !VerifySignature("secret", body, signature) {
		t.Error("valid signature rejected")
	}
}

func TestVerifySignatureRejects(t *testing.T) {
	body := []byte("payload")
	signature := SignPayload("secret", body)

	if VerifySignature("secret", []byte("tampered"), signature) {
		t.Error("tampered body accepted")
	}
	if VerifySignature("other", body, signature) {
		t.Error("wrong secret accepted")
	}
	if VerifySignature("secret", body, "") {
		t.Error("empty signature accepted")
	}
	if VerifySignature("", body, signature) {
		t.Error("empty secret accepted")
	}
}

func TestVerifySignaturePrefixAndCase(t *testing.T) {
	body := []byte("payload")
	signature := SignPayload("secret", body)

	if !VerifySignature("secret", body, "sha256="+signature) {
		t.Error("sha256= prefix rejected")
	}
	if !VerifySignature("secret", body, strings.ToUpper(signature)) {
		t.Error("uppercase hex rejected")
	}
}
