// Package model содержит доменные сущности сервиса банка отходов.
package model

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// OrderKind различает два вида заказов: вывоз отходов (pickup) и самостоятельную сдачу (deliver).
type OrderKind string

const (
	KindPickup  OrderKind = "pickup"
	KindDeliver OrderKind = "deliver"
)

// Valid сообщает, является ли вид заказа известным.
func (k OrderKind) Valid() bool {
	return k == KindPickup || k == KindDeliver
}

// Status описывает этап обработки заказа.
type Status string

const (
	StatusUnprocessed      Status = "unprocessed"
	StatusAwaitingPickup   Status = "awaiting_pickup"
	StatusAwaitingWeighing Status = "awaiting_weighing"
	StatusCompleted        Status = "completed"
)

// ParseStatus разбирает строковое представление статуса.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusUnprocessed, StatusAwaitingPickup, StatusAwaitingWeighing, StatusCompleted:
		return st, true
	default:
		return "", false
	}
}

// BankRef описывает необязательную ссылку на банк отходов. Нулевое значение означает, что банк ещё не назначен.
type BankRef struct {
	id  string
	set bool
}

// MatchedBank возвращает ссылку на назначенный банк.
func MatchedBank(id string) BankRef {
	if id == "" {
		return BankRef{}
	}
	return BankRef{id: id, set: true}
}

// UnmatchedBank возвращает пустую ссылку.
func UnmatchedBank() BankRef {
	return BankRef{}
}

// ID возвращает идентификатор банка и признак его наличия.
func (b BankRef) ID() (string, bool) {
	return b.id, b.set
}

// Matched сообщает, назначен ли банк.
func (b BankRef) Matched() bool {
	return b.set
}

// Is сообщает, что заказ закреплён именно за указанным банком.
func (b BankRef) Is(bankID string) bool {
	return b.set && b.id == bankID
}

// Ptr возвращает идентификатор банка в виде указателя для записи в nullable-колонку.
func (b BankRef) Ptr() *string {
	if !b.set {
		return nil
	}
	id := b.id
	return &id
}

// BankRefFromPtr строит ссылку из nullable-значения.
func BankRefFromPtr(p *string) BankRef {
	if p == nil {
		return BankRef{}
	}
	return MatchedBank(*p)
}

// MarshalJSON кодирует отсутствующий банк как null.
func (b BankRef) MarshalJSON() ([]byte, error) {
	if !b.set {
		return []byte("null"), nil
	}
	return json.Marshal(b.id)
}

// ErrEmptyBankID возвращается при попытке передать пустую строку вместо идентификатора банка.
var ErrEmptyBankID = errors.New("bank id must not be empty")

// UnmarshalJSON принимает строку или null. Пустая строка отвергается.
func (b *BankRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = BankRef{}
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyBankID
	}
	*b = MatchedBank(id)
	return nil
}

// GeoPoint описывает координаты адреса вывоза.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Contact содержит контактные данные заявителя (pickup) или отправителя (deliver).
type Contact struct {
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Address  string    `json:"address,omitempty"`
	Location *GeoPoint `json:"geoPoint,omitempty"`
}

// WasteLine описывает строку взвешенных отходов в завершённом заказе.
type WasteLine struct {
	WasteTypeID   string  `json:"wasteTypeId"`
	WeightKg      float64 `json:"weightKg"`
	PointsAwarded int64   `json:"pointsAwarded"`
}

// Order описывает заказ на вывоз или сдачу отходов.
type Order struct {
	ID            string      `json:"id"`
	Kind          OrderKind   `json:"kind"`
	UserID        string      `json:"userId"`
	Bank          BankRef     `json:"bankId"`
	Contact       Contact     `json:"contact"`
	Schedule      time.Time   `json:"schedule"`
	RealizedAt    *time.Time  `json:"realizedTime,omitempty"`
	WasteImageRef string      `json:"wasteImageRef,omitempty"`
	Wastes        []WasteLine `json:"wastes"`
	Status        Status      `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Completed сообщает, что заказ находится в терминальном состоянии.
func (o *Order) Completed() bool {
	return o.Status == StatusCompleted
}

// Event описывает запись журнала смены статусов заказа.
type Event struct {
	OrderID   string
	Kind      OrderKind
	From      Status
	To        Status
	ActorRole Role
	ActorID   string
	CreatedAt time.Time
}

// TopTierSentinel задаёт недостижимую верхнюю границу последнего уровня.
const TopTierSentinel int64 = math.MaxInt64

// LevelTier описывает уровень пользователя, покрывающий полуинтервал [RequiredPoints, NextTierPoints).
type LevelTier struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	RequiredPoints int64  `json:"requiredPoints" yaml:"requiredPoints"`
	NextTierPoints int64  `json:"nextTierPoints" yaml:"nextTierPoints"`
	BadgeURL       string `json:"badgeDesignUrl,omitempty" yaml:"badgeDesignUrl"`
}

// Contains сообщает, попадает ли сумма баллов в интервал уровня.
func (t LevelTier) Contains(points int64) bool {
	return t.RequiredPoints <= points && points < t.NextTierPoints
}

// WasteType описывает запись справочника отходов со ставкой баллов за килограмм.
type WasteType struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	PointsPerKg float64 `json:"pointsPerKg" yaml:"pointsPerKg"`
	Unit        string  `json:"unit" yaml:"unit"`
}

// UserLedger содержит поля пользователя, относящиеся к начислению баллов.
type UserLedger struct {
	UserID           string    `json:"userId"`
	TotalPoints      int64     `json:"totalPoints"`
	WasteCollectedKg float64   `json:"wasteCollectedKg"`
	LevelID          string    `json:"levelId"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ListFilter задаёт выборку заказов для списка.
type ListFilter struct {
	// Status ограничивает выборку конкретным статусом. Пустое значение отключает фильтр.
	Status Status
	// ActiveOnly оставляет только незавершённые заказы.
	ActiveOnly bool
	Offset     int
	Limit      int
}
