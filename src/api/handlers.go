package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/verification/types"
)

type handlers struct {
	verifier Verifier
	log      *zap.Logger
}

type listingBody struct {
	ID string `json:"id"`
	types.Listing
}

type brokerBody struct {
	ID string `json:"id"`
	types.Broker
}

type propertyBody struct {
	ID string `json:"id"`
	types.Property
}

// DecodeRequest reads an {id, <subject fields>} body for subject.
func DecodeRequest(subject types.SubjectType, body []byte) (types.Request, error) {
	req := types.Request{SubjectType: subject}
	switch subject {
	case types.SubjectListing:
		var b listingBody
		if err := json.Unmarshal(body, &b); err != nil {
			return types.Request{}, err
		}
		req.ID, req.Listing = b.ID, &b.Listing
	case types.SubjectBroker:
		var b brokerBody
		if err := json.Unmarshal(body, &b); err != nil {
			return types.Request{}, err
		}
		req.ID, req.Broker = b.ID, &b.Broker
	case types.SubjectProperty:
		var b propertyBody
		if err := json.Unmarshal(body, &b); err != nil {
			return types.Request{}, err
		}
		req.ID, req.Property = b.ID, &b.Property
	default:
		return types.Request{}, fmt.Errorf("unknown subject type %q", subject)
	}
	return req, nil
}

func (h handlers) verify(subject types.SubjectType) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			writeError(c, malformed(err))
			return
		}
		req, err := DecodeRequest(subject, raw)
		if err != nil {
			writeError(c, malformed(err))
			return
		}

		d, err := h.verifier.Verify(c.Request.Context(), req)
		if err != nil {
			h.log.Warn("verification rejected",
				zap.String("request_id", req.ID),
				zap.String("subject_type", string(req.SubjectType)),
				zap.Error(err))
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d.Wire())
	}
}
