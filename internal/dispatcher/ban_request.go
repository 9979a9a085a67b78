package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/valyala/fasthttp"
)

// BanRequestExecutor issues ban, unban and kick calls directly over fasthttp.
type BanRequestExecutor struct {
	httpPool    *HTTPPool
	rateLimiter *RateLimitMonitor
	baseURL     string
	token       string
}

func NewBanRequestExecutor(httpPool *HTTPPool, rateLimiter *RateLimitMonitor, baseURL, token string) *BanRequestExecutor {
	if baseURL == "" {
		baseURL = "https://discord.com/api/v10"
	}
	return &BanRequestExecutor{
		httpPool:    httpPool,
		rateLimiter: rateLimiter,
		baseURL:     baseURL,
		token:       token,
	}
}

func (bre *BanRequestExecutor) ExecuteBan(ctx context.Context, guildID, userID, reason string) error {
	body, _ := json.Marshal(map[string]interface{}{
		"delete_message_seconds": 0,
	})
	path := fmt.Sprintf("/guilds/%s/bans/%s", guildID, userID)
	return bre.do(ctx, "ban", guildID, fasthttp.MethodPut, path, reason, body)
}

func (bre *BanRequestExecutor) ExecuteUnban(ctx context.Context, guildID, userID string) error {
	path := fmt.Sprintf("/guilds/%s/bans/%s", guildID, userID)
	return bre.do(ctx, "unban", guildID, fasthttp.MethodDelete, path, "Punishment expired", nil)
}

func (bre *BanRequestExecutor) ExecuteKick(ctx context.Context, guildID, userID, reason string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s", guildID, userID)
	return bre.do(ctx, "kick", guildID, fasthttp.MethodDelete, path, reason, nil)
}

func (bre *BanRequestExecutor) do(ctx context.Context, route, guildID, method, path, reason string, body []byte) error {
	if !bre.rateLimiter.CanExecute(route, guildID) {
		return fmt.Errorf("%s: %w", route, ErrRateLimited)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(bre.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bot "+bre.token)
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(reason))
	}
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	if err := bre.httpPool.GetClient().DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("%s: %w", route, err)
	}
	bre.rateLimiter.UpdateFromFastHTTPResponse(resp, route, guildID)

	return classifyStatus(route, resp.StatusCode(), resp.Body())
}

// classifyStatus maps a REST response onto the dispatcher's error taxonomy.
func classifyStatus(route string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == fasthttp.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", route, ErrRateLimited)
	}

	var apiErr discordgo.APIErrorMessage
	_ = json.Unmarshal(body, &apiErr)
	if isStaleCode(apiErr.Code) {
		return fmt.Errorf("%s: %s: %w", route, apiErr.Message, ErrStaleReference)
	}
	return fmt.Errorf("%s failed: status %d code %d %s", route, status, apiErr.Code, apiErr.Message)
}

func isStaleCode(code int) bool {
	switch code {
	case discordgo.ErrCodeUnknownMember,
		discordgo.ErrCodeUnknownMessage,
		discordgo.ErrCodeUnknownBan,
		discordgo.ErrCodeUnknownUser,
		discordgo.ErrCodeUnknownChannel:
		return true
	default:
		return false
	}
}
