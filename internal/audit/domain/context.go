package domain

// Actor identifies who caused an event.
type Actor struct {
	Subject   string
	IPAddress string
	UserAgent string
}

// EventContext is the structured payload of an event. The set of variants is
// closed: LoginContext, AccessContext, DataAccessContext and ExtraContext.
type EventContext interface {
	actor() Actor
	fields() map[string]any
}

func (a Actor) actor() Actor { return a }

// ActorOf returns the actor carried by c, or the zero Actor for nil.
func ActorOf(c EventContext) Actor {
	if c == nil {
		return Actor{}
	}
	return c.actor()
}

// Fields flattens c into the detail map that is masked and stored with the event.
// Keys from Extra never override typed fields.
func Fields(c EventContext) map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return c.fields()
}

// LoginContext accompanies authentication events.
type LoginContext struct {
	Actor
	SessionID string
	Reason    string
	Extra     map[string]any
}

func (c LoginContext) fields() map[string]any {
	m := merge(c.Extra)
	putString(m, "sessionId", c.SessionID)
	putString(m, "reason", c.Reason)
	return m
}

// AccessContext accompanies authorization and API events.
type AccessContext struct {
	Actor
	Resource string
	Action   string
	Extra    map[string]any
}

func (c AccessContext) fields() map[string]any {
	m := merge(c.Extra)
	putString(m, "resource", c.Resource)
	putString(m, "action", c.Action)
	return m
}

// DataAccessContext accompanies reads of stored data. DataSize is in bytes.
type DataAccessContext struct {
	Actor
	Resource string
	DataSize int64
	Extra    map[string]any
}

func (c DataAccessContext) fields() map[string]any {
	m := merge(c.Extra)
	putString(m, "resource", c.Resource)
	m["dataSize"] = c.DataSize
	return m
}

// ExtraContext carries an actor and free-form details for event types without a
// dedicated variant.
type ExtraContext struct {
	Actor
	Extra map[string]any
}

func (c ExtraContext) fields() map[string]any { return merge(c.Extra) }

func merge(extra map[string]any) map[string]any {
	m := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func putString(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}
