package gatt

import "testing"

func TestHandleValid(t *testing.T) {
	if HandleInvalid.Valid() {
		t.Error("HandleInvalid must not be valid")
	}
	if !HandleMin.Valid() || !HandleMax.Valid() {
		t.Error("HandleMin and HandleMax must be valid")
	}
}

func TestAttributeValueValidate(t *testing.T) {
	ok := AttributeValue{Bytes: make([]byte, MaxAttributeLength)}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() at the exact limit should pass, got %v", err)
	}

	tooLong := AttributeValue{Bytes: make([]byte, MaxAttributeLength+1)}
	if err := tooLong.Validate(); err == nil {
		t.Error("Validate() should reject a value exceeding MaxAttributeLength")
	}
	if tooLong.Length() != MaxAttributeLength+1 {
		t.Errorf("Length() = %d, want %d", tooLong.Length(), MaxAttributeLength+1)
	}
}
