package httpx

import (
	"net/http"
	"net/url"

	autherrors "github.com/campusworks/campus-ui-api/internal/errors"
)

// RenderError translates a service error into an HTTP response. API
// requests always receive JSON; browser requests with an expired or
// missing session are redirected to the login page instead so the user
// lands somewhere actionable.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	switch autherrors.KindOf(err) {
	case autherrors.KindValidation:
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation_failed",
			Err:     err,
			Field:   autherrors.FieldOf(err),
		})
	case autherrors.KindInvalidCredentials:
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "invalid_credentials", Err: err})
	case autherrors.KindRefreshInvalid:
		unauthenticated(w, r, "session_expired", err)
	case autherrors.KindUnauthorized:
		unauthenticated(w, r, "authentication_required", err)
	case autherrors.KindNetwork:
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "backend_unreachable", Err: err})
	case autherrors.KindServer:
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "backend_error", Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: err})
	}
}

func unauthenticated(w http.ResponseWriter, r *http.Request, code string, err error) {
	if isBrowserRequest(r) {
		http.Redirect(w, r, loginRedirectURL(r), http.StatusFound)
		return
	}
	WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: code, Err: err})
}

// loginRedirectURL builds the login page URL carrying the interrupted
// destination so the user returns there after re-authenticating.
func loginRedirectURL(r *http.Request) string {
	u := url.URL{Path: "/login"}
	if r.URL.Path != "/" && r.URL.Path != "/login" {
		q := url.Values{}
		q.Set("redirect_uri", r.URL.RequestURI())
		u.RawQuery = q.Encode()
	}
	return u.String()
}
