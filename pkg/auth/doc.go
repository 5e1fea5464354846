// Package auth provides user identity, the role hierarchy, and credential primitives for warden.
//
// # Role Hierarchy
//
// Roles form a strict total order:
//
//	CLIENT_USER (1) < CLIENT_ADMIN (2) < ANALYST (3)
//
// A user satisfies a required role when their rank is greater than or equal to
// the required rank:
//
//	if auth.HasRole(user, auth.RoleClientAdmin) {
//		// CLIENT_ADMIN or ANALYST
//	}
//
// # Credentials
//
// Passwords are stored as argon2id digests in PHC string format. Session tokens are
// 256 bits of cryptographic randomness, hex encoded:
//
//	digest, err := auth.HashPassword("correct horse")
//	ok := auth.VerifyPassword(digest, "correct horse")
//
//	token, err := auth.GenerateSessionToken()
//	log.WithField("token", auth.TokenPrefix(token)).Debug("session issued")
package auth
