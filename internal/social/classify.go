package social

import (
	"github.com/engagelens/pkg/models"
)

// refAuthors indexes the side-loaded referenced tweets by id so reference
// targets can be resolved to their authors.
func refAuthors(resp *tweetsResponse) map[string]string {
	authors := make(map[string]string, len(resp.Includes.Tweets))
	for _, t := range resp.Includes.Tweets {
		if t.AuthorID != "" {
			authors[t.ID] = t.AuthorID
		}
	}
	return authors
}

// classifyOwnPost maps one of the target's own posts onto the interactions it
// expresses, one record per reference. A reference whose counterpart cannot
// be resolved from the side-loaded data yields nothing; that is accepted
// degradation, not an error. A plain original post yields nothing.
func classifyOwnPost(post tweetObject, authors map[string]string) []models.InteractionRecord {
	var records []models.InteractionRecord

	for _, ref := range post.ReferencedTweets {
		var kind models.InteractionKind
		var counterpart string

		switch ref.Type {
		case "replied_to":
			kind = models.KindReply
			counterpart = post.InReplyToUserID
			if counterpart == "" {
				counterpart = authors[ref.ID]
			}
		case "quoted":
			kind = models.KindQuote
			counterpart = authors[ref.ID]
		case "retweeted":
			kind = models.KindRetweet
			counterpart = authors[ref.ID]
		default:
			// Unknown reference type: nothing to credit.
			continue
		}

		if counterpart == "" {
			continue
		}

		records = append(records, models.InteractionRecord{
			Kind:          kind,
			CounterpartID: counterpart,
			SourcePostID:  post.ID,
			ObservedAt:    post.CreatedAt,
		})
	}

	return records
}

func classifyTimeline(resp *tweetsResponse) []models.InteractionRecord {
	authors := refAuthors(resp)
	var records []models.InteractionRecord
	for _, post := range resp.Data {
		records = append(records, classifyOwnPost(post, authors)...)
	}
	return records
}

// classifyMentions credits each mentioning post's author. The target's own
// posts are skipped here; self-interactions are removed again during graph
// construction either way.
func classifyMentions(resp *tweetsResponse, targetID string) []models.InteractionRecord {
	var records []models.InteractionRecord
	for _, post := range resp.Data {
		if post.AuthorID == "" || post.AuthorID == targetID {
			continue
		}
		records = append(records, models.InteractionRecord{
			Kind:          models.KindMention,
			CounterpartID: post.AuthorID,
			SourcePostID:  post.ID,
			ObservedAt:    post.CreatedAt,
		})
	}
	return records
}

// classifyLikes credits the author of each post the target liked.
func classifyLikes(resp *tweetsResponse) []models.InteractionRecord {
	var records []models.InteractionRecord
	for _, post := range resp.Data {
		if post.AuthorID == "" {
			continue
		}
		records = append(records, models.InteractionRecord{
			Kind:          models.KindLike,
			CounterpartID: post.AuthorID,
			SourcePostID:  post.ID,
			ObservedAt:    post.CreatedAt,
		})
	}
	return records
}
