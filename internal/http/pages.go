package http

import (
	"html/template"
	"log"
	"net/http"

	"myauth/internal/model"
)

type pageData struct {
	Title string
	User  *model.User
	Users []model.User
}

func (s *Server) handleHomePage(w http.ResponseWriter, _ *http.Request) {
	renderPage(w, homeTmpl, pageData{Title: "myAuth"})
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	user, denial := s.gate.Authorize(r, model.RoleUser)
	if denial != nil {
		// Unauthenticated visitors land back on the login page.
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	renderPage(w, dashboardTmpl, pageData{Title: "Dashboard", User: &user})
}

func (s *Server) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	user, denial := s.gate.Authorize(r, model.RoleUser)
	if denial != nil {
		writeDenial(w, denial)
		return
	}
	renderPage(w, profileTmpl, pageData{Title: "Profile", User: &user})
}

func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	user, denial := s.gate.Authorize(r, model.RoleAdmin)
	if denial != nil {
		renderPage(w, unauthorizedTmpl, pageData{Title: "Unauthorized"})
		return
	}

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	renderPage(w, adminTmpl, pageData{Title: "Admin Panel", User: &user, Users: users})
}

func (s *Server) handleUnauthorizedPage(w http.ResponseWriter, _ *http.Request) {
	renderPage(w, unauthorizedTmpl, pageData{Title: "Unauthorized"})
}

func (s *Server) handleSetupPage(w http.ResponseWriter, _ *http.Request) {
	renderPage(w, setupTmpl, pageData{Title: "Admin Setup"})
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		log.Printf("page render error: %v", err)
	}
}

func mustPage(content string) *template.Template {
	base := template.Must(template.New("base").Parse(baseHTML))
	return template.Must(base.Parse(content))
}

var (
	homeTmpl         = mustPage(homeHTML)
	dashboardTmpl    = mustPage(dashboardHTML)
	profileTmpl      = mustPage(profileHTML)
	adminTmpl        = mustPage(adminHTML)
	unauthorizedTmpl = mustPage(unauthorizedHTML)
	setupTmpl        = mustPage(setupHTML)
)

const baseHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}} - myAuth</title>
</head>
<body>
  <nav>
    <a href="/">Home</a>
    {{if .User}}
    <a href="/dashboard">Dashboard</a>
    <a href="/profile">Profile</a>
    {{if eq .User.Role "admin"}}<a href="/admin">Admin</a>{{end}}
    {{end}}
  </nav>
  <main>
{{template "content" .}}
  </main>
</body>
</html>
`

const homeHTML = `{{define "content"}}
  <h1>myAuth</h1>
  <p>Sign in with your email address. A one-time code will be sent to you;
  exchange it at <code>POST /auth/verify</code> for a session token.</p>
  <form method="post" action="/auth/code">
    <input type="email" name="email" placeholder="you@example.com" required>
    <button type="submit">Send code</button>
  </form>
{{end}}`

const dashboardHTML = `{{define "content"}}
  <h1>Dashboard</h1>
  <p>Welcome back, {{.User.Email}}.</p>
  <ul>
    <li>Role: {{.User.Role}}</li>
    {{if .User.LastLogin}}<li>Last login: {{.User.LastLogin.Format "2006-01-02 15:04"}}</li>{{end}}
  </ul>
{{end}}`

const profileHTML = `{{define "content"}}
  <h1>Profile Settings</h1>
  <dl>
    <dt>Email</dt><dd>{{.User.Email}}</dd>
    <dt>Role</dt><dd>{{.User.Role}}</dd>
    <dt>Member since</dt><dd>{{.User.CreatedAt.Format "2006-01-02"}}</dd>
  </dl>
{{end}}`

const adminHTML = `{{define "content"}}
  <h1>Admin Panel</h1>
  <table>
    <thead>
      <tr><th>Email</th><th>Role</th><th>Status</th><th>Joined</th><th>Last Login</th></tr>
    </thead>
    <tbody>
      {{range .Users}}
      <tr>
        <td>{{.Email}}</td>
        <td>{{.Role}}</td>
        <td>{{if .IsActive}}Active{{else}}Inactive{{end}}</td>
        <td>{{.CreatedAt.Format "2006-01-02"}}</td>
        <td>{{if .LastLogin}}{{.LastLogin.Format "2006-01-02"}}{{else}}Never{{end}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>
{{end}}`

const unauthorizedHTML = `{{define "content"}}
  <h1>Access Denied</h1>
  <p>You do not have permission to view this page.</p>
  <p><a href="/">Back to home</a></p>
{{end}}`

const setupHTML = `{{define "content"}}
  <h1>Admin Setup</h1>
  <p>The first administrator is created automatically from the configured
  fallback admin email once the service handles its first request. Emails on
  the admin allowlist receive the admin role on their first sign-in.</p>
{{end}}`
