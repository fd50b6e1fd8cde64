// Package ledger переводит взвешенные отходы в баллы и поддерживает уровень пользователя
// согласованным с итоговой суммой баллов.
package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/wastebank/internal/apperr"
	"github.com/mmeshcher/wastebank/internal/model"
)

// ErrNoTier возвращается, если таблица уровней не покрывает сумму баллов.
var ErrNoTier = errors.New("no level tier covers points total")

// Item описывает строку отходов, переданную банком при завершении заказа.
type Item struct {
	WasteTypeID string  `json:"wasteTypeId"`
	WeightKg    float64 `json:"weightKg"`
}

// Rates содержит ставки баллов за килограмм по идентификатору типа отходов.
type Rates map[string]float64

// NewRates строит ставки из справочника отходов.
func NewRates(catalog []model.WasteType) Rates {
	r := make(Rates, len(catalog))
	for _, w := range catalog {
		r[w.ID] = w.PointsPerKg
	}
	return r
}

// PointsPerKg возвращает ставку для типа отходов. Неизвестный тип даёт ноль.
func (r Rates) PointsPerKg(wasteTypeID string) float64 {
	return r[wasteTypeID]
}

// Award описывает полностью вычисленное начисление по одному заказу.
type Award struct {
	Lines       []model.WasteLine
	TotalPoints int64
	TotalWeight decimal.Decimal
}

// Compute вычисляет начисление по всем строкам последовательно, до фиксации в хранилище.
// Баллы строки равны round(pointsPerKg * weightKg) с округлением половины вверх.
func Compute(rates Rates, items []Item) (Award, error) {
	award := Award{
		Lines:       make([]model.WasteLine, 0, len(items)),
		TotalWeight: decimal.Zero,
	}

	for i, it := range items {
		if it.WasteTypeID == "" {
			return Award{}, fmt.Errorf("%w: wastes[%d]: waste type is required", apperr.ErrValidation, i)
		}
		if math.IsNaN(it.WeightKg) || math.IsInf(it.WeightKg, 0) || it.WeightKg < 0 {
			return Award{}, fmt.Errorf("%w: wastes[%d]: weight must be a non-negative number", apperr.ErrValidation, i)
		}

		weight := decimal.NewFromFloat(it.WeightKg)
		points := decimal.NewFromFloat(rates.PointsPerKg(it.WasteTypeID)).Mul(weight).Round(0)
		if points.GreaterThan(decimal.NewFromInt(math.MaxInt64-award.TotalPoints)) {
			return Award{}, fmt.Errorf("%w: wastes[%d]: points overflow", apperr.ErrValidation, i)
		}

		p := points.IntPart()
		award.Lines = append(award.Lines, model.WasteLine{
			WasteTypeID:   it.WasteTypeID,
			WeightKg:      it.WeightKg,
			PointsAwarded: p,
		})
		award.TotalPoints += p
		award.TotalWeight = award.TotalWeight.Add(weight)
	}

	return award, nil
}

// ResolveTier возвращает уровень, интервал которого содержит total.
// Текущий уровень сохраняется, если сумма осталась в его интервале.
func ResolveTier(tiers []model.LevelTier, currentID string, total int64) (model.LevelTier, error) {
	for _, t := range tiers {
		if t.ID == currentID && t.Contains(total) {
			return t, nil
		}
	}
	for _, t := range tiers {
		if t.Contains(total) {
			return t, nil
		}
	}
	return model.LevelTier{}, fmt.Errorf("%w: %d", ErrNoTier, total)
}

// Apply добавляет начисление к балансу пользователя и пересчитывает уровень.
func Apply(u model.UserLedger, award Award, tiers []model.LevelTier) (model.UserLedger, error) {
	if award.TotalPoints > math.MaxInt64-u.TotalPoints {
		return u, fmt.Errorf("%w: points total overflow", apperr.ErrBadRequest)
	}
	total := u.TotalPoints + award.TotalPoints

	tier, err := ResolveTier(tiers, u.LevelID, total)
	if err != nil {
		return u, err
	}

	collected, _ := decimal.NewFromFloat(u.WasteCollectedKg).Add(award.TotalWeight).Float64()

	u.TotalPoints = total
	u.LevelID = tier.ID
	u.WasteCollectedKg = collected
	return u, nil
}
