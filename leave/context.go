package leave

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

type actorKey struct{}

// ContextWithActor tags ctx with the ID of the user performing an action.
// Audit entries written under ctx carry this ID.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, generic.ActorID(actor))
}

// ActorFromContext returns the actor set by ContextWithActor, or "".
func ActorFromContext(ctx context.Context) generic.ActorID {
	id, _ := ctx.Value(actorKey{}).(generic.ActorID)
	return id
}
