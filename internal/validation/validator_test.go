package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestInput struct {
	SourceType string `json:"source_type" validate:"required,sourcetype"`
	AccountKey string `json:"account_key" validate:"required,keysegment"`
	ItemKind   string `json:"item_kind" validate:"required,itemkind"`
	ItemKey    string `json:"item_key" validate:"required"`
	Title      string `json:"title" validate:"max=500"`
}

func TestValidator_Valid(t *testing.T) {
	v := New()

	err := v.Validate(ingestInput{
		SourceType: "xtream",
		AccountKey: "acc1",
		ItemKind:   "vod",
		ItemKey:    "12345",
		Title:      "The Matrix",
	})
	assert.NoError(t, err)
}

func TestValidator_FieldErrors(t *testing.T) {
	v := New()

	err := v.Validate(ingestInput{
		SourceType: "carrier-pigeon",
		AccountKey: "a:b",
		ItemKind:   "vod",
	})
	require.Error(t, err)

	var fe *FieldsError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Fields, "source_type")
	assert.Contains(t, fe.Fields, "account_key")
	assert.Contains(t, fe.Fields, "item_key")
	assert.NotContains(t, fe.Fields, "item_kind")
	assert.Contains(t, fe.Error(), "validation failed")
}

func TestValidator_UsesJSONTagNames(t *testing.T) {
	v := New()

	err := v.Validate(ingestInput{ItemKind: "vod", SourceType: "m3u", AccountKey: "acc"})
	var fe *FieldsError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Fields, "item_key")
	assert.NotContains(t, fe.Fields, "ItemKey")
}
