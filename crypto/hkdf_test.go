package crypto

import (
	"encoding/hex"
	"testing"
)

func TestHKDFExpandVector(t *testing.T) {
	salt := make([]byte, 32)
	for i := range salt {
		salt[i] = byte(i)
	}

	first, second, err := HKDFExpand(salt, []byte("wacore-ikm"))
	if err != nil {
		t.Fatalf("HKDFExpand failed: %v", err)
	}

	if got := hex.EncodeToString(first[:]); got != "85fbd06dd3fb3b8094900b907ea1ed8299268e56606af9805716ae4759f06b44" {
		t.Errorf("first output = %s", got)
	}
	if got := hex.EncodeToString(second[:]); got != "611db99a4ae351d45bc46d3c0d2fe5565bf18e8d4f6b2e7846e0299db3c35dbb" {
		t.Errorf("second output = %s", got)
	}
}

func TestHKDFExpandEmptyIKM(t *testing.T) {
	ck := make([]byte, 32)
	a1, a2, err := HKDFExpand(ck, nil)
	if err != nil {
		t.Fatalf("HKDFExpand failed: %v", err)
	}
	b1, b2, err := HKDFExpand(ck, []byte{})
	if err != nil {
		t.Fatalf("HKDFExpand failed: %v", err)
	}
	if a1 != b1 || a2 != b2 {
		t.Fatal("nil and empty input key material must derive the same keys")
	}
	if a1 == a2 {
		t.Fatal("the two outputs must differ")
	}
}
