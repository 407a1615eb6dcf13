package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"gorm.io/gorm"

	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/domain/entity"
	"market_analyzer/internal/feature/bars/usecase"
)

const insertBatchSize = 500

type seriesGorm struct {
	db *gorm.DB
}

var _ usecase.SeriesStore = (*seriesGorm)(nil)

// NewGormSeriesStore は PostgreSQL / SQLite 上の時系列ストアを作成します。
func NewGormSeriesStore(db *gorm.DB) *seriesGorm {
	return &seriesGorm{db: db}
}

// BarModel は日足1行のテーブル表現です。
// (ticker, date) は一意制約にしません。同一バッチ内の重複日付もそのまま保存します。
type BarModel struct {
	ID         uint       `gorm:"primaryKey"`
	Ticker     string     `gorm:"size:16;not null;index:bar_ticker_date,priority:1"`
	Date       time.Time  `gorm:"not null;index:bar_ticker_date,priority:2"`
	Generation string     `gorm:"size:36;not null;index"`
	Open       null.Float `gorm:"column:open"`
	High       null.Float `gorm:"column:high"`
	Low        null.Float `gorm:"column:low"`
	Close      float64    `gorm:"not null"`
	Volume     null.Int   `gorm:"column:volume"`
}

func (BarModel) TableName() string {
	return "daily_bars"
}

func toBarModel(e entity.Bar, generation string) BarModel {
	return BarModel{
		Ticker:     e.Ticker,
		Date:       e.Date,
		Generation: generation,
		Open:       e.Open,
		High:       e.High,
		Low:        e.Low,
		Close:      e.Close,
		Volume:     e.Volume,
	}
}

func (m BarModel) toEntity() entity.Bar {
	return entity.Bar{
		Ticker: m.Ticker,
		Date:   entity.CalendarDate(m.Date.UTC()),
		Open:   m.Open,
		High:   m.High,
		Low:    m.Low,
		Close:  m.Close,
		Volume: m.Volume,
	}
}

// EnsureSeries はテーブルとインデックスを作成します。何度呼んでも安全です。
func (r *seriesGorm) EnsureSeries(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&BarModel{}); err != nil {
		return fmt.Errorf("migrate daily_bars: %w", err)
	}
	return nil
}

// Replace は ticker の既存行を bars で置き換えます。
// 新しい世代の行を書き込んでから（stage）、それ以外の世代を削除します（swap）。
// 両フェーズは1トランザクションで実行されるため、読み手が途中状態を見ることはありません。
func (r *seriesGorm) Replace(ctx context.Context, ticker string, bars []entity.Bar) error {
	ticker = strings.ToUpper(ticker)
	generation := uuid.NewString()

	ms := make([]BarModel, 0, len(bars))
	for _, b := range bars {
		b.Ticker = ticker
		ms = append(ms, toBarModel(b, generation))
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ms) > 0 {
			if err := tx.CreateInBatches(&ms, insertBatchSize).Error; err != nil {
				return fmt.Errorf("stage %d rows for %s: %w", len(ms), ticker, err)
			}
		}
		if err := tx.Where("ticker = ? AND generation <> ?", ticker, generation).Delete(&BarModel{}).Error; err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSwapIncomplete, err)
		}
		return nil
	})
}

// ReadOrdered は ticker の全行を日付の昇順（同日は挿入順）で返します。
func (r *seriesGorm) ReadOrdered(ctx context.Context, ticker string) ([]entity.Bar, error) {
	var rows []BarModel
	err := r.db.WithContext(ctx).
		Where("ticker = ?", strings.ToUpper(ticker)).
		Order("date ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.Bar, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toEntity())
	}
	return out, nil
}
