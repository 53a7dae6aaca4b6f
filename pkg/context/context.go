package context

import "context"

type ContextKey string

var (
	RequestIDKey     = ContextKey("X-Request-Id")
	MethodKey        = ContextKey("X-Method")
	RouteKey         = ContextKey("X-Route")
	RemoteIPKey      = ContextKey("X-Remote-Ip")
	IntegrationIDKey = ContextKey("X-Integration-Id")
	SlackTeamIDKey   = ContextKey("X-Slack-Team-Id")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

func SetMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	return getString(ctx, MethodKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return getString(ctx, RouteKey)
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	return getString(ctx, RemoteIPKey)
}

// SetIntegrationID tags the context with the integration a request acts on.
func SetIntegrationID(ctx context.Context, integrationID string) context.Context {
	return context.WithValue(ctx, IntegrationIDKey, integrationID)
}

func GetIntegrationID(ctx context.Context) string {
	return getString(ctx, IntegrationIDKey)
}

func SetSlackTeamID(ctx context.Context, teamID string) context.Context {
	return context.WithValue(ctx, SlackTeamIDKey, teamID)
}

func GetSlackTeamID(ctx context.Context) string {
	return getString(ctx, SlackTeamIDKey)
}

func getString(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}
