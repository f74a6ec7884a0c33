package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-group-cli/internal/buyergroup"
	"github.com/sells-group/buyer-group-cli/pkg/zerobounce"
)

// ZeroBounce verifies email deliverability.
type ZeroBounce struct {
	client zerobounce.Client
}

var _ buyergroup.EmailVerifier = (*ZeroBounce)(nil)

// NewZeroBounce wraps a ZeroBounce client.
func NewZeroBounce(client zerobounce.Client) *ZeroBounce {
	return &ZeroBounce{client: client}
}

// VerifyEmail maps the ZeroBounce status onto a deliverability verdict.
// Unknown and ambiguous statuses are EmailUnknown.
func (z *ZeroBounce) VerifyEmail(ctx context.Context, email string) (buyergroup.EmailStatus, error) {
	res, err := z.client.Validate(ctx, email)
	if err != nil {
		return buyergroup.EmailUnknown, eris.Wrap(err, "zerobounce source: validate")
	}
	switch {
	case res.Status.Deliverable():
		return buyergroup.EmailValid, nil
	case res.Status.Undeliverable():
		return buyergroup.EmailInvalid, nil
	default:
		return buyergroup.EmailUnknown, nil
	}
}
