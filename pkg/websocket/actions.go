package websocket

// Actions understood by the gateway (client -> server).
const (
	ActionHealthCheck = "health.check"

	ActionSessionList        = "session.list"
	ActionSessionInput       = "session.input"
	ActionSessionSubscribe   = "session.subscribe"
	ActionSessionUnsubscribe = "session.unsubscribe"
)

// Notification actions (server -> client).
const (
	ActionSessionOutput     = "session.output"
	ActionSessionExited     = "session.exited"
	ActionResolutionArrived = "resolution.arrived"
)

// Error codes carried in ErrorPayload.
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeInternalError = "INTERNAL_ERROR"
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
)
