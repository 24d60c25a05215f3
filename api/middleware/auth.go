package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/supplylink/groupbuy-backend/api/responses"
	pkgAuth "github.com/supplylink/groupbuy-backend/pkg/auth"
	"github.com/supplylink/groupbuy-backend/pkg/config"
	pkgerrors "github.com/supplylink/groupbuy-backend/pkg/errors"
	"github.com/supplylink/groupbuy-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the vendor
// identity. Identity lives in the marketplace's auth service; this API only
// verifies the token it minted.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			vendorID := claims.VendorID.String()
			ctx := context.WithValue(r.Context(), ctxVendorID, vendorID)
			if logg != nil {
				ctx = logg.WithVendorID(ctx, vendorID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
