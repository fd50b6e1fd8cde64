package model

import "fmt"

// Role описывает роль вызывающего, выданную провайдером идентификации.
type Role string

const (
	RoleUser Role = "user"
	RoleBank Role = "bank"
)

// Actor представляет вызывающего с установленной ролью. Реализуется только UserActor и BankActor.
type Actor interface {
	ActorID() string
	Role() Role
	sealedActor()
}

// UserActor представляет конечного пользователя, владельца заказов.
type UserActor struct {
	ID string
}

func (a UserActor) ActorID() string { return a.ID }
func (a UserActor) Role() Role      { return RoleUser }
func (UserActor) sealedActor()      {}

// BankActor представляет банк отходов, продвигающий статусы закреплённых за ним заказов.
type BankActor struct {
	ID string
}

func (a BankActor) ActorID() string { return a.ID }
func (a BankActor) Role() Role      { return RoleBank }
func (BankActor) sealedActor()      {}

// NewActor строит Actor по роли и идентификатору из токена.
func NewActor(role Role, id string) (Actor, error) {
	if id == "" {
		return nil, fmt.Errorf("empty caller id")
	}
	switch role {
	case RoleUser:
		return UserActor{ID: id}, nil
	case RoleBank:
		return BankActor{ID: id}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}
