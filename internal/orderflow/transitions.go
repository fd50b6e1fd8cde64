// Package orderflow описывает конечный автомат заказа: допустимые переходы статусов
// и правила, по которым каждая роль может изменять заказ.
package orderflow

import "github.com/mmeshcher/wastebank/internal/model"

// bankTransitions перечисляет переходы, доступные закреплённому за заказом банку.
// Заказ на сдачу (deliver) минует awaiting_pickup.
var bankTransitions = map[model.OrderKind]map[model.Status][]model.Status{
	model.KindPickup: {
		model.StatusUnprocessed:      {model.StatusAwaitingPickup, model.StatusAwaitingWeighing},
		model.StatusAwaitingPickup:   {model.StatusAwaitingWeighing},
		model.StatusAwaitingWeighing: {model.StatusCompleted},
	},
	model.KindDeliver: {
		model.StatusUnprocessed:      {model.StatusAwaitingWeighing},
		model.StatusAwaitingWeighing: {model.StatusCompleted},
	},
}

// CanTransition сообщает, является ли to допустимым следующим статусом для from.
func CanTransition(kind model.OrderKind, from, to model.Status) bool {
	next, ok := bankTransitions[kind][from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Successors возвращает допустимые следующие статусы.
func Successors(kind model.OrderKind, from model.Status) []model.Status {
	next := bankTransitions[kind][from]
	out := make([]model.Status, len(next))
	copy(out, next)
	return out
}
