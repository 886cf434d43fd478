package common

// AuthorizationHeaderName carries "Bearer <token>" on HTTP requests and
// in gRPC metadata.
const AuthorizationHeaderName = "authorization"

// AccessTokenHeaderName is the legacy gRPC metadata key holding a bare
// access token.
const AccessTokenHeaderName = "access_token"

// BearerScheme is the only authorization scheme the service accepts.
const BearerScheme = "Bearer"
