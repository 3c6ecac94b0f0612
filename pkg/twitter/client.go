package twitter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// interface guards ensure Client implements both social interfaces
var _ bork.MentionSource = &Client{}
var _ bork.ReplySink = &Client{}

const (
	minResults = 5
	maxResults = 100
)

// Client talks to the v2 HTTP API with an app bearer token. Every request
// waits on a shared limiter so polling and replies stay within the
// account's request budget.
type Client struct {
	client  *resty.Client
	userID  string
	limiter *rate.Limiter
	log     *logrus.Entry
}

func NewClient(conf bork.Config) *Client {
	perMin := conf.Twitter.RequestsPerMin
	if perMin <= 0 {
		perMin = 15
	}
	self := &Client{
		userID:  conf.Twitter.UserID,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), 1),
		log:     logger.NewSublogger("twitter"),
	}
	self.client = resty.New().
		SetBaseURL(conf.Twitter.BaseURL).
		SetAuthToken(conf.Twitter.BearerToken).
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "borkbot").
		OnBeforeRequest(self.onRateLimit).
		OnAfterResponse(self.onStatusToError)
	return self
}

func (self *Client) onRateLimit(c *resty.Client, req *resty.Request) error {
	return self.limiter.Wait(req.Context())
}

func (self *Client) onStatusToError(c *resty.Client, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	self.log.WithFields(logrus.Fields{
		"status": resp.StatusCode(),
		"url":    resp.Request.URL,
		"resp":   string(resp.Body()),
	}).Debug("request failed")
	return fmt.Errorf("unexpected status: %s", resp.Status())
}

type tweet struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	AuthorID         string    `json:"author_id"`
	CreatedAt        time.Time `json:"created_at"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
		PollIDs   []string `json:"poll_ids"`
	} `json:"attachments"`
	Entities struct {
		URLs []struct {
			URL         string `json:"url"`
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
}

type mentionsResponse struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

// FetchMentions returns one page of mentions, newest first.
func (self *Client) FetchMentions(ctx context.Context, sinceID string, maxID string, count int) ([]bork.Mention, error) {
	if count < minResults {
		count = minResults
	} else if count > maxResults {
		count = maxResults
	}
	req := self.client.R().
		SetContext(ctx).
		SetPathParam("id", self.userID).
		SetQueryParams(map[string]string{
			"max_results":  strconv.Itoa(count),
			"expansions":   "author_id",
			"tweet.fields": "created_at,author_id,referenced_tweets,attachments,entities",
			"user.fields":  "username",
		}).
		SetResult(&mentionsResponse{})
	if sinceID != "" {
		req.SetQueryParam("since_id", sinceID)
	}
	if maxID != "" {
		req.SetQueryParam("until_id", maxID)
	}
	resp, err := req.Get("/users/{id}/mentions")
	if err != nil {
		return nil, err
	}
	body := resp.Result().(*mentionsResponse)

	handles := map[string]string{}
	for _, u := range body.Includes.Users {
		handles[u.ID] = u.Username
	}
	mentions := make([]bork.Mention, 0, len(body.Data))
	for _, t := range body.Data {
		m := bork.Mention{
			ID:       t.ID,
			UserID:   t.AuthorID,
			Handle:   handles[t.AuthorID],
			Text:     t.Text,
			Created:  t.CreatedAt,
			HasMedia: len(t.Attachments.MediaKeys) > 0,
			HasPoll:  len(t.Attachments.PollIDs) > 0,
			HasLinks: len(t.Entities.URLs) > 0,
		}
		for _, ref := range t.ReferencedTweets {
			if ref.Type == "replied_to" {
				m.InReplyToID = ref.ID
			}
		}
		mentions = append(mentions, m)
	}
	self.log.WithFields(logrus.Fields{"since": sinceID, "until": maxID, "count": len(mentions)}).Debug("mentions page")
	return mentions, nil
}

type postRequest struct {
	Text  string `json:"text"`
	Reply struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply"`
}

type postResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// PostReply posts "@handle body" in reply to inReplyToID.
func (self *Client) PostReply(ctx context.Context, inReplyToID string, handle string, body string) (string, error) {
	post := postRequest{Text: "@" + handle + " " + body}
	post.Reply.InReplyToTweetID = inReplyToID
	resp, err := self.client.R().
		SetContext(ctx).
		SetBody(post).
		SetResult(&postResponse{}).
		Post("/tweets")
	if err != nil {
		return "", err
	}
	id := resp.Result().(*postResponse).Data.ID
	if id == "" {
		return "", fmt.Errorf("reply to %s: response has no id", inReplyToID)
	}
	return id, nil
}
