package simfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/pkg/logger"
)

// Verify reads the bot's leaderboard from its HTTP API at baseURL and
// compares it with the board expected from ds.
func Verify(ctx context.Context, client *http.Client, baseURL string, ds *Dataset, limit int) error {
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimRight(baseURL, "/") + "/leaderboard?limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAPI, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAPI, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close response body", logger.Error(err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET /leaderboard: status %d", ErrAPI, resp.StatusCode)
	}

	var got []model.LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		return fmt.Errorf("%w: decode leaderboard: %w", ErrAPI, err)
	}
	want := ds.ExpectedLeaderboard(limit)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		return fmt.Errorf("%w (-want +got):\n%s", ErrMismatch, diff)
	}
	logger.Get().Info(ctx, "leaderboard verified",
		logger.Int("entries", len(got)),
		logger.Int("mentions", len(ds.Mentions)))
	return nil
}
