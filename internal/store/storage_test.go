package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDuplicateKeyErrorMessage(t *testing.T) {
	err := &DuplicateKeyError{Detail: `{ key: "admin" }`}
	assert.Equal(t, `Duplicate key error on { key: "admin" }`, err.Error())

	err = &DuplicateKeyError{}
	assert.Equal(t, "Duplicate key error", err.Error())
}

func TestDupKeyDetail(t *testing.T) {
	raw := errors.New(`E11000 duplicate key error collection: padron.role index: key_1 dup key: { key: "admin" }`)
	assert.Equal(t, `{ key: "admin" }`, dupKeyDetail(raw))

	assert.Equal(t, "", dupKeyDetail(errors.New("connection reset")))
}

func TestWrapWriteErrorPassthrough(t *testing.T) {
	assert.NoError(t, wrapWriteError(nil))

	plain := errors.New("network down")
	assert.Equal(t, plain, wrapWriteError(plain))
}
