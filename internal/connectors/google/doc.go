// Package google implements a directory source for Google Workspace users.
//
// Users are listed through the Admin SDK Directory API (users.list) with the
// customer and page size from settings; nextPageToken is the continuation token.
//
// # Attribute mapping
//
//   - id, primaryEmail, creationTime map to id, userPrincipalName, createdDateTime
//   - suspended maps to accountEnabled = !suspended
//   - isAdmin maps to userType "Admin", otherwise "Member"
//   - lastLoginTime maps to lastSignInDateTime; the epoch value Google
//     reports for users who never signed in is treated as absent
//
// # OAuth2 Scopes
//
// The token must carry https://www.googleapis.com/auth/admin.directory.user.readonly.
package google
