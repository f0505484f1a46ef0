package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/domain"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

const routeUser = "/user/:id"

// UpdateUser edits a citizen profile. The returned user is nil when the
// backend does not echo the record back.
func (c *Client) UpdateUser(ctx context.Context, id string, req dto.UpdateUserRequest) (*domain.User, error) {
	payload, err := c.sendJSON(ctx, routeUser, http.MethodPut, "/user/"+url.PathEscape(id), req)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}
	var user domain.User
	if err := json.Unmarshal(trimmed, &user); err != nil {
		return nil, apperrors.NewDecodeError("user", err)
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}
