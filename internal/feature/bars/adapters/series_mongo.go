package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/domain/entity"
	"market_analyzer/internal/feature/bars/usecase"
)

// MongoDB の NamespaceExists エラーコード
const namespaceExistsCode = 48

type seriesMongo struct {
	db         *mongo.Database
	collection string
}

var (
	_ usecase.SeriesStore      = (*seriesMongo)(nil)
	_ usecase.WindowAggregator = (*seriesMongo)(nil)
)

// NewMongoSeriesStore は MongoDB の時系列コレクションを使うストアを作成します。
func NewMongoSeriesStore(db *mongo.Database, collection string) *seriesMongo {
	return &seriesMongo{db: db, collection: collection}
}

type barMeta struct {
	Ticker     string `bson:"ticker"`
	Generation string `bson:"generation"`
}

// barDocument は時系列コレクションの1ドキュメントです。
// Seq は同一日付の行を挿入順に並べるために使います。
type barDocument struct {
	Date   time.Time `bson:"date"`
	Meta   barMeta   `bson:"meta"`
	Seq    int       `bson:"seq"`
	Open   *float64  `bson:"open,omitempty"`
	High   *float64  `bson:"high,omitempty"`
	Low    *float64  `bson:"low,omitempty"`
	Close  float64   `bson:"close"`
	Volume *int64    `bson:"volume,omitempty"`
}

type smaDocument struct {
	barDocument `bson:",inline"`
	SMA         float64 `bson:"sma"`
}

func toBarDocument(b entity.Bar, generation string, seq int) barDocument {
	return barDocument{
		Date:   b.Date,
		Meta:   barMeta{Ticker: b.Ticker, Generation: generation},
		Seq:    seq,
		Open:   b.Open.Ptr(),
		High:   b.High.Ptr(),
		Low:    b.Low.Ptr(),
		Close:  b.Close,
		Volume: b.Volume.Ptr(),
	}
}

func (d barDocument) toEntity() entity.Bar {
	return entity.Bar{
		Ticker: d.Meta.Ticker,
		Date:   entity.CalendarDate(d.Date.UTC()),
		Open:   null.FloatFromPtr(d.Open),
		High:   null.FloatFromPtr(d.High),
		Low:    null.FloatFromPtr(d.Low),
		Close:  d.Close,
		Volume: null.IntFromPtr(d.Volume),
	}
}

func (r *seriesMongo) coll() *mongo.Collection {
	return r.db.Collection(r.collection)
}

// EnsureSeries は時系列コレクションを作成します。
// 既に存在する場合は domain.ErrPartitionAlreadyExists を返します。
func (r *seriesMongo) EnsureSeries(ctx context.Context) error {
	ts := options.TimeSeries().
		SetTimeField("date").
		SetMetaField("meta").
		SetGranularity("hours")
	err := r.db.CreateCollection(ctx, r.collection, options.CreateCollection().SetTimeSeriesOptions(ts))
	if err == nil {
		slog.Info("created time series collection", "collection", r.collection)
		return nil
	}
	if isNamespaceExists(err) {
		return domain.ErrPartitionAlreadyExists
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return &domain.ConnectionError{Target: "mongo", Err: err}
	}
	return fmt.Errorf("create collection %s: %w", r.collection, err)
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.HasErrorCode(namespaceExistsCode) || strings.Contains(ce.Message, "already exists")
	}
	return false
}

// Replace は新しい世代のドキュメントを書き込んでから（stage）古い世代を削除します（swap）。
// 時系列コレクションはトランザクションを使えないため、両フェーズは別々に実行されます。
func (r *seriesMongo) Replace(ctx context.Context, ticker string, bars []entity.Bar) error {
	ticker = strings.ToUpper(ticker)
	generation := uuid.NewString()
	coll := r.coll()

	if len(bars) > 0 {
		docs := make([]barDocument, 0, len(bars))
		for i, b := range bars {
			b.Ticker = ticker
			docs = append(docs, toBarDocument(b, generation, i))
		}
		if _, err := coll.InsertMany(ctx, docs); err != nil {
			// 書きかけの世代を取り除き、以前のデータを残す
			if _, cerr := coll.DeleteMany(ctx, bson.D{{"meta.ticker", ticker}, {"meta.generation", generation}}); cerr != nil {
				slog.Error("failed to remove partially staged rows", "ticker", ticker, "generation", generation, "error", cerr)
			}
			return r.wrap(fmt.Errorf("stage %d rows for %s: %w", len(docs), ticker, err))
		}
	}

	filter := bson.D{{"meta.ticker", ticker}, {"meta.generation", bson.D{{"$ne", generation}}}}
	if _, err := coll.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSwapIncomplete, r.wrap(err))
	}
	return nil
}

// ReadOrdered は ticker の全ドキュメントを日付の昇順で返します。
func (r *seriesMongo) ReadOrdered(ctx context.Context, ticker string) ([]entity.Bar, error) {
	opts := options.Find().SetSort(bson.D{{"date", 1}, {"seq", 1}})
	cur, err := r.coll().Find(ctx, bson.D{{"meta.ticker", strings.ToUpper(ticker)}}, opts)
	if err != nil {
		return nil, r.wrap(err)
	}
	var docs []barDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, r.wrap(err)
	}
	out := make([]entity.Bar, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toEntity())
	}
	return out, nil
}

// CountBars は ticker の保存済みドキュメント数を返します。
func (r *seriesMongo) CountBars(ctx context.Context, ticker string) (int, error) {
	n, err := r.coll().CountDocuments(ctx, bson.D{{"meta.ticker", strings.ToUpper(ticker)}})
	if err != nil {
		return 0, r.wrap(err)
	}
	return int(n), nil
}

// AggregateSMA は移動平均の計算を MongoDB の集計パイプラインで行います。
func (r *seriesMongo) AggregateSMA(ctx context.Context, ticker string, window int) ([]entity.AggregatedBar, error) {
	if window <= 0 {
		return nil, domain.ErrInvalidWindow
	}
	cur, err := r.coll().Aggregate(ctx, SMAPipeline(strings.ToUpper(ticker), window))
	if err != nil {
		return nil, r.wrap(err)
	}
	var docs []smaDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, r.wrap(err)
	}
	out := make([]entity.AggregatedBar, 0, len(docs))
	for _, d := range docs {
		out = append(out, entity.AggregatedBar{Bar: d.toEntity(), SMA: null.FloatFrom(d.SMA)})
	}
	return out, nil
}

// SMAPipeline は ticker の終値の単純移動平均を計算する集計パイプラインを返します。
// 直近 window 件が揃った行のみを日付順に出力します。
func SMAPipeline(ticker string, window int) mongo.Pipeline {
	order := bson.D{{"date", 1}, {"seq", 1}}
	trailing := bson.D{{"documents", bson.A{-(window - 1), 0}}}
	return mongo.Pipeline{
		{{"$match", bson.D{{"meta.ticker", ticker}}}},
		{{"$sort", order}},
		{{"$setWindowFields", bson.D{
			{"partitionBy", "$meta.ticker"},
			{"sortBy", order},
			{"output", bson.D{
				{"sma", bson.D{{"$avg", "$close"}, {"window", trailing}}},
				{"filled", bson.D{{"$count", bson.D{}}, {"window", trailing}}},
			}},
		}}},
		{{"$match", bson.D{{"filled", window}, {"sma", bson.D{{"$ne", nil}}}}}},
		{{"$project", bson.D{{"_id", 0}, {"filled", 0}}}},
	}
}

func (r *seriesMongo) wrap(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return &domain.ConnectionError{Target: "mongo", Err: err}
	}
	return err
}
