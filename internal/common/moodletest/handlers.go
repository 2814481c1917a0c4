package moodletest

import (
	"net/http"
	"strconv"
)

// Error codes reported by the fake, as a real site reports them.
const (
	CodeInvalidLogin     = "invalidlogin"
	CodeServiceNotAvail  = "servicenotavailable"
	CodeInvalidToken     = "invalidtoken"
	CodeInvalidRecord    = "invalidrecord"
	CodeInvalidParameter = "invalidparameter"
	CodeUnableToLock     = "ex_unabletolock"
)

// TokenError is the token endpoint's failure shape.
func TokenError(code, text string) map[string]any {
	return map[string]any{"errorcode": code, "error": text}
}

// Exception is the REST endpoint's failure shape.
func Exception(exception, code, message string) map[string]any {
	return map[string]any{"exception": exception, "errorcode": code, "message": message}
}

// LockedFor answers with the lock error n times before handing over to next.
func LockedFor(n int, next Function) Function {
	remaining := n
	return func(c Call) any {
		if remaining > 0 {
			remaining--
			return Exception("moodle_exception", CodeUnableToLock, "Unable to obtain lock")
		}
		return next(c)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	c, ok := s.record(r, TokenPath)
	if !ok {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := c.Form.Get("username")

	s.mu.Lock()
	password, known := s.passwords[username]
	s.mu.Unlock()

	switch {
	case c.Form.Get("service") != s.service:
		sendJSON(w, TokenError(CodeServiceNotAvail, "Web service is not available"))
	case !known || password != c.Form.Get("password"):
		sendJSON(w, TokenError(CodeInvalidLogin, "Invalid login"))
	default:
		sendJSON(w, map[string]any{"token": s.token, "privatetoken": nil})
	}
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	c, ok := s.record(r, ServicePath)
	if !ok {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if c.Query.Get("wstoken") != s.token {
		sendJSON(w, Exception("moodle_exception", CodeInvalidToken, "Invalid token - token not found"))
		return
	}
	if c.Query.Get("moodlewsrestformat") != "json" {
		http.Error(w, "only json is supported", http.StatusNotImplemented)
		return
	}

	s.mu.Lock()
	fn, ok := s.functions[c.Function]
	s.mu.Unlock()
	if !ok {
		fn = s.Builtin(c.Function)
	}
	if fn == nil {
		sendJSON(w, Exception("dml_missing_record_exception", CodeInvalidRecord,
			"Can't find data record in database table external_functions."))
		return
	}
	sendJSON(w, fn(c))
}

// Builtin returns the fake's own implementation of a function, or nil.
func (s *Server) Builtin(name string) Function {
	switch name {
	case "core_user_get_users_by_field":
		return s.usersByField
	case "core_webservice_get_site_info":
		return s.currentSiteInfo
	}
	return nil
}

func (s *Server) usersByField(c Call) any {
	field := c.Form.Get("field")
	if field == "" {
		return Exception("invalid_parameter_exception", CodeInvalidParameter, "Invalid parameter value detected")
	}
	wanted := map[string]bool{}
	for i := 0; ; i++ {
		v, ok := c.Form["values["+strconv.Itoa(i)+"]"]
		if !ok {
			break
		}
		wanted[v[0]] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	matches := []map[string]any{}
	for _, u := range s.users {
		if wanted[formatValue(u[field])] {
			matches = append(matches, u)
		}
	}
	return matches
}

func (s *Server) currentSiteInfo(Call) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := make(map[string]any, len(s.siteInfo))
	for k, v := range s.siteInfo {
		info[k] = v
	}
	return info
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}
