package domain

import "fmt"

type ActorKind string

const (
	ActorUser       ActorKind = "user"
	ActorRestaurant ActorKind = "restaurant"
)

func (k ActorKind) Valid() bool {
	return k == ActorUser || k == ActorRestaurant
}

// Actor is the authenticated caller. It is resolved once from the access
// token and passed down explicitly.
type Actor struct {
	Kind ActorKind
	ID   int64
}

func NewUser(id int64) Actor {
	return Actor{Kind: ActorUser, ID: id}
}

func NewRestaurant(id int64) Actor {
	return Actor{Kind: ActorRestaurant, ID: id}
}

func (a Actor) IsUser() bool       { return a.Kind == ActorUser }
func (a Actor) IsRestaurant() bool { return a.Kind == ActorRestaurant }

func (a Actor) Channel() Channel {
	return Channel{Kind: a.Kind, ID: a.ID}
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%d", a.Kind, a.ID)
}
