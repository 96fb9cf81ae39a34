// Package identity is the pluggable user-identity subsystem behind the
// SkyExplorer backend: credential stores, identity synchronization, JWT
// session credentials, and remember-me tokens.
//
// Credential stores:
//   - UserStore is the single contract identity persistence is consumed
//     through. BunUserStore keeps records in a relational table via Bun;
//     XMLUserStore keeps the whole collection in one XML document on disk.
//     The active variant is selected at startup from Config, never by
//     runtime type inspection.
//
// Synchronization:
//   - When the file-backed store is the authentication source, Synchronizer
//     mirrors each authenticated identity into the relational store so
//     relational foreign keys (bookings, saved flights, searches) stay
//     valid. Mirroring is strictly one-directional; the file store is never
//     written back.
//
// Session credentials:
//   - TokenService signs and validates compact HS256 tokens whose claims
//     carry the username as subject and the role authorities in the auth
//     claim. Validation failures collapse into a single invalid outcome.
//
// Remember-me:
//   - RememberMeStore is an in-process expiring token table for persistent
//     login. Tokens live in process memory only, so a restart forgets every
//     remembered session.
package identity
