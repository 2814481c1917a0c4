// Package moodle authenticates users against a Moodle site through its
// web-service API.
//
// Connect exchanges a username and password for a web-service token, then
// uses the token to resolve the user's profile and the site info:
//
//	pw := moodle.NewPassword(secret)
//	defer pw.Wipe()
//	session, err := moodle.Connect(ctx, "moodle.example.org", "alice", pw)
//	if err != nil {
//	    switch {
//	    case errors.Is(err, moodle.ErrAuthFailed):
//	        // invalid credentials
//	    default:
//	        // temporary failure
//	    }
//	}
//	defer session.Close()
//
// The session can call further functions with Invoke or InvokeInto.
// Parameters are encoded the way PHP decodes them; see package phpquery.
package moodle
