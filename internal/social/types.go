package social

import (
	"time"

	"github.com/engagelens/pkg/models"
)

// Wire shapes for the v2 read endpoints. Only the fields the pipeline
// consumes are declared; everything else in the payload is ignored.

type userObject struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
		FollowingCount int `json:"following_count"`
		TweetCount     int `json:"tweet_count"`
		ListedCount    int `json:"listed_count"`
	} `json:"public_metrics"`
}

type tweetReference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type tweetObject struct {
	ID               string           `json:"id"`
	AuthorID         string           `json:"author_id"`
	Text             string           `json:"text"`
	CreatedAt        time.Time        `json:"created_at"`
	InReplyToUserID  string           `json:"in_reply_to_user_id"`
	ReferencedTweets []tweetReference `json:"referenced_tweets"`
	PublicMetrics    struct {
		RetweetCount    int `json:"retweet_count"`
		ReplyCount      int `json:"reply_count"`
		LikeCount       int `json:"like_count"`
		QuoteCount      int `json:"quote_count"`
		ImpressionCount int `json:"impression_count"`
	} `json:"public_metrics"`
}

type tweetsResponse struct {
	Data     []tweetObject `json:"data"`
	Includes struct {
		Users  []userObject  `json:"users"`
		Tweets []tweetObject `json:"tweets"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type usersResponse struct {
	Data []userObject `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type userResponse struct {
	Data userObject `json:"data"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

type errorResponse struct {
	Errors []apiError `json:"errors"`
	Title  string     `json:"title"`
	Detail string     `json:"detail"`
}

// detail flattens whichever error shape the endpoint chose to respond with.
func (r *errorResponse) detail() string {
	if len(r.Errors) > 0 {
		if r.Errors[0].Detail != "" {
			return r.Errors[0].Detail
		}
		return r.Errors[0].Title
	}
	if r.Detail != "" {
		return r.Detail
	}
	return r.Title
}

func toAccount(u userObject) models.Account {
	return models.Account{
		ID:          u.ID,
		Handle:      u.Username,
		DisplayName: u.Name,
		Bio:         u.Description,
		Followers:   u.PublicMetrics.FollowersCount,
		Following:   u.PublicMetrics.FollowingCount,
		PostCount:   u.PublicMetrics.TweetCount,
		ListedCount: u.PublicMetrics.ListedCount,
	}
}

func toPost(t tweetObject) models.PartnerPost {
	return models.PartnerPost{
		ID:          t.ID,
		AuthorID:    t.AuthorID,
		Text:        t.Text,
		CreatedAt:   t.CreatedAt,
		Likes:       t.PublicMetrics.LikeCount,
		Retweets:    t.PublicMetrics.RetweetCount,
		Quotes:      t.PublicMetrics.QuoteCount,
		Replies:     t.PublicMetrics.ReplyCount,
		Impressions: t.PublicMetrics.ImpressionCount,
	}
}
