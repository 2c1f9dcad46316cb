package remote

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/favorite_offer.json
var favoriteOfferSchemaJSON string

// favoriteOfferSchema はリモートから受け取るお気に入りレコードのスキーマ。
// json-serverはスキーマを持たないため、取り込み時にここで形を確認する。
var favoriteOfferSchema = jsonschema.MustCompileString("favorite_offer.json", favoriteOfferSchemaJSON)

// validateFavoriteOffer は1件分の生JSONをスキーマで検証する。
func validateFavoriteOffer(raw json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := favoriteOfferSchema.Validate(v); err != nil {
		return err
	}
	return nil
}
