package adapters

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"market_analyzer/internal/feature/bars/domain/entity"
)

func stageNames(p mongo.Pipeline) []string {
	names := make([]string, len(p))
	for i, stage := range p {
		names[i] = stage[0].Key
	}
	return names
}

func lookup(d bson.D, key string) any {
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

func TestSMAPipeline(t *testing.T) {
	t.Parallel()

	p := SMAPipeline("MSFT", 50)
	assert.Equal(t, []string{"$match", "$sort", "$setWindowFields", "$match", "$project"}, stageNames(p))

	match := p[0][0].Value.(bson.D)
	assert.Equal(t, "MSFT", lookup(match, "meta.ticker"))

	swf := p[2][0].Value.(bson.D)
	assert.Equal(t, "$meta.ticker", lookup(swf, "partitionBy"))
	output := lookup(swf, "output").(bson.D)
	sma := lookup(output, "sma").(bson.D)
	assert.Equal(t, "$close", lookup(sma, "$avg"))
	window := lookup(sma, "window").(bson.D)
	assert.Equal(t, bson.A{-49, 0}, lookup(window, "documents"))

	filter := p[3][0].Value.(bson.D)
	assert.Equal(t, 50, lookup(filter, "filled"), "rows with a partial window are excluded")
}

func TestSMAPipeline_WindowOfOne(t *testing.T) {
	t.Parallel()

	swf := SMAPipeline("MSFT", 1)[2][0].Value.(bson.D)
	sma := lookup(lookup(swf, "output").(bson.D), "sma").(bson.D)
	window := lookup(sma, "window").(bson.D)
	assert.Equal(t, bson.A{0, 0}, lookup(window, "documents"))
}

func TestBarDocument_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bar  entity.Bar
	}{
		{name: "all fields", bar: bar("MSFT", 2, 100)},
		{
			name: "optional fields missing",
			bar:  entity.Bar{Ticker: "MSFT", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := toBarDocument(tt.bar, "gen-1", 7)
			assert.Equal(t, "gen-1", doc.Meta.Generation)
			assert.Equal(t, 7, doc.Seq)

			raw, err := bson.Marshal(doc)
			require.NoError(t, err)
			var decoded barDocument
			require.NoError(t, bson.Unmarshal(raw, &decoded))
			assert.Equal(t, tt.bar, decoded.toEntity())
		})
	}
}

func TestBarDocument_OmitsNullFields(t *testing.T) {
	t.Parallel()

	raw, err := bson.Marshal(toBarDocument(entity.Bar{Ticker: "MSFT", Close: 1, Open: null.Float{}}, "g", 0))
	require.NoError(t, err)
	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.NotContains(t, m, "open")
	assert.NotContains(t, m, "volume")
	assert.Contains(t, m, "close")
}

func TestIsNamespaceExists(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "namespace exists code", err: mongo.CommandError{Code: 48, Name: "NamespaceExists"}, want: true},
		{name: "message only", err: mongo.CommandError{Code: 1, Message: "collection already exists"}, want: true},
		{name: "wrapped", err: fmt.Errorf("create: %w", mongo.CommandError{Code: 48}), want: true},
		{name: "other command error", err: mongo.CommandError{Code: 13, Message: "unauthorized"}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isNamespaceExists(tt.err))
		})
	}
}
