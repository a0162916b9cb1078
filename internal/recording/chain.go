package recording

import (
	"fmt"

	"github.com/mockk/mockk-sub002/internal/matcher"
	"github.com/mockk/mockk-sub002/internal/stub"
)

// ChainResolver rewires chained calls, whose receivers are placeholder
// results of earlier calls, into recorded calls linked by value.
type ChainResolver struct {
	repo *stub.Repository
}

// NewChainResolver creates a resolver backed by repo.
func NewChainResolver(repo *stub.Repository) *ChainResolver {
	return &ChainResolver{repo: repo}
}

// ResolveStub resolves chains permanently. Each chained call's receiver
// becomes the persistent child double that the previous call's stub
// hands out for the previous call's matcher, so stubbing the same chain
// again reaches the same child.
func (c *ChainResolver) ResolveStub(calls []DetectedCall) ([]matcher.RecordedCall, error) {
	out := make([]matcher.RecordedCall, len(calls))
	for i, dc := range calls {
		rc := matcher.RecordedCall{RetValue: dc.RetValue, RetType: dc.RetType, Matcher: dc.Matcher}
		if k := dc.ChainedFrom; k >= 0 && k < i {
			prev := &out[k]
			value, id, err := c.repo.StubFor(prev.Matcher.Self).ChildMock(prev.Matcher, prev.RetType)
			if err != nil {
				return nil, fmt.Errorf("resolve chain at call %d: %w", i, err)
			}
			prev.RetValue = value
			prev.IsRetValueMock = true

			rc.Matcher = rc.Matcher.WithSelf(id)
			link := *prev
			rc.SelfChain = &link
		}
		out[i] = rc
	}
	return out, nil
}

// ResolveVerify resolves chains for one verification attempt. Receivers
// stay the block's placeholder doubles; the back-links let verification
// find the doubles really returned by the matching predecessor calls.
func (c *ChainResolver) ResolveVerify(calls []DetectedCall) []matcher.RecordedCall {
	out := make([]matcher.RecordedCall, len(calls))
	for i, dc := range calls {
		rc := matcher.RecordedCall{RetValue: dc.RetValue, RetType: dc.RetType, Matcher: dc.Matcher}
		if k := dc.ChainedFrom; k >= 0 && k < i {
			out[k].IsRetValueMock = true
			link := out[k]
			rc.SelfChain = &link
		}
		out[i] = rc
	}
	return out
}
