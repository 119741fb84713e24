/*
Package authsdk is the Go client for the accounts service, and the home of
the request and response types the service itself serves.

# SDKClient vs Session

  - SDKClient: unauthenticated operations (login, password reset, health)
  - Session: operations carrying a bearer token

	client := authsdk.NewSDKClient("https://accounts.example.com")

	session, err := client.AuthenticateWithPassword(ctx, "jane@example.com", password)
	if errors.Is(err, authsdk.ErrBadCredentials) {
		// wrong email or password, or the account is inactive
	}

	me, err := session.Me(ctx)

Superuser sessions can register accounts and manage other users:

	user, err := admin.Register(ctx, authsdk.RegisterRequest{
		Email:     "new@example.com",
		Password:  "Abcdef1!",
		FirstName: "New",
		LastName:  "User",
	})

# Errors

Every failed call returns an *APIError carrying the HTTP status and the
service error code. The predefined values (ErrBadCredentials,
ErrUserAlreadyExists, ...) match with errors.Is regardless of description.
*/
package authsdk
