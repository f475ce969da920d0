package mapbox

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"tanktally_backend/internal/geo"
	"tanktally_backend/platform/apperr"
)

// Suggest returns ranked suggestions for partial text. An empty result is not
// an error.
func (c *Client) Suggest(ctx context.Context, query, sessionToken string) ([]geo.Suggestion, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("access_token", c.accessToken)
	params.Set("session_token", sessionToken)

	reqURL := fmt.Sprintf("%s/suggest?%s", c.searchURL, params.Encode())

	var payload suggestResponse
	if err := c.getJSON(ctx, "suggest", reqURL, &payload); err != nil {
		return nil, err
	}

	suggestions := make([]geo.Suggestion, 0, len(payload.Suggestions))
	for _, raw := range payload.Suggestions {
		suggestion, ok := buildSuggestion(raw)
		if !ok {
			continue
		}
		suggestions = append(suggestions, suggestion)
	}

	return suggestions, nil
}

// Retrieve resolves a suggestion id to coordinates within the same session.
func (c *Client) Retrieve(ctx context.Context, suggestionID, sessionToken string) (geo.Coordinates, error) {
	params := url.Values{}
	params.Set("access_token", c.accessToken)
	params.Set("session_token", sessionToken)

	reqURL := fmt.Sprintf("%s/retrieve/%s?%s", c.searchURL, url.PathEscape(suggestionID), params.Encode())

	var payload retrieveResponse
	if err := c.getJSON(ctx, "retrieve", reqURL, &payload); err != nil {
		return geo.Coordinates{}, err
	}

	if len(payload.Features) == 0 {
		return geo.Coordinates{}, apperr.NotFound("no feature for suggestion").WithOp("retrieve")
	}

	coords, ok := payload.Features[0].coordinates()
	if !ok {
		return geo.Coordinates{}, apperr.Provider("feature has no coordinates").WithOp("retrieve")
	}
	if err := coords.Validate(); err != nil {
		return geo.Coordinates{}, apperr.Wrap(apperr.KindProvider, "feature coordinates invalid", err).WithOp("retrieve")
	}

	return coords, nil
}

func buildSuggestion(raw suggestionPayload) (geo.Suggestion, bool) {
	if raw.MapboxID == "" {
		return geo.Suggestion{}, false
	}

	return geo.Suggestion{
		ID:             raw.MapboxID,
		Label:          buildLabel(raw),
		SecondaryLabel: raw.PlaceFormatted,
	}, true
}

// buildLabel renders "name, full address", falling back to the formatted
// place when no full address is known.
func buildLabel(raw suggestionPayload) string {
	detail := raw.FullAddress
	if detail == "" {
		detail = raw.PlaceFormatted
	}

	parts := make([]string, 0, 2)
	if raw.Name != "" {
		parts = append(parts, raw.Name)
	}
	if detail != "" && detail != raw.Name {
		parts = append(parts, detail)
	}
	return strings.Join(parts, ", ")
}
