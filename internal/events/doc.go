// Package events publishes feed activity events to Kafka.
//
// # Overview
//
// The feed service emits a small stream of activity events so downstream
// consumers (analytics, recommendation training) can observe what users
// read and rate. Publishing is fire-and-forget: the feed path never blocks
// on Kafka, and delivery failures only log.
//
// # Event Types
//
//   - feed.page_served: A feed page was served to a user
//   - feed.feedback_saved: A user rated a paper
//   - feed.profile_updated: A user saved or cleared their profile
//   - feed.folder_paper_added: A user filed a paper into a folder
//
// # Usage
//
// Create a publisher from configuration and close it on shutdown:
//
//	publisher := events.NewPublisher(cfg.Kafka, logger)
//	defer publisher.Close()
//
//	publisher.PublishPageServed(ctx, userID, queryKey, len(page.Papers))
//
// When Kafka is disabled in configuration the publisher is a no-op, so
// callers never need to branch on whether eventing is wired.
package events
