package query

// AuthContext captures, immutably, everything about the caller that tenant
// resolution for reads may depend on. The HTTP boundary builds it once from
// the request headers and the session; the service never sees the request.
type AuthContext struct {
	// Origin is the Origin header value for cross-origin API callers.
	Origin string
	// RefererHost and RefererPath come from the parsed Referer header.
	RefererHost string
	RefererPath string
	// UserSub identifies the authenticated platform user; "" is anonymous.
	UserSub string
}

// Authenticated reports whether the caller is a logged-in platform user.
func (a AuthContext) Authenticated() bool { return a.UserSub != "" }

// CrossOrigin reports whether the caller is an external CORS consumer.
func (a AuthContext) CrossOrigin() bool { return a.Origin != "" }
