// Package pgstore persists feed entries in Postgres via pgx. It owns the
// feed_entries table (unique (owner_user_id, post_id) pair, keyset index on
// (owner_user_id, created_at, id)) and provides the bulk fanout insert and
// the descending keyset queries the pagination engine pages with. It also
// hosts the Postgres-backed follower directory and post store consumed from
// the external schema.
package pgstore
