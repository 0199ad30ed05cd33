package auth

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleScope = "https://www.googleapis.com/auth/generative-language"

var callbackPage = template.Must(template.New("callback").Parse(
	`<html><body><h2>{{.Title}}</h2><p>{{.Message}}</p><p>You can close this tab.</p></body></html>`))

func googleConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{googleScope},
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
	}
}

// RunGoogleOAuth runs the browser consent flow against a loopback callback
// and returns stored-ready credentials. Instructions are written to out.
func RunGoogleOAuth(ctx context.Context, clientID, clientSecret string, out io.Writer) (*GoogleCredentials, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting local server: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	conf := googleConfig(clientID, clientSecret, fmt.Sprintf("http://localhost:%d/callback", port))

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			msg := r.URL.Query().Get("error")
			if msg == "" {
				msg = "no authorization code received"
			}
			_ = callbackPage.Execute(w, map[string]string{"Title": "Authorization failed", "Message": msg})
			select {
			case errCh <- fmt.Errorf("oauth callback error: %s", msg):
			default:
			}
			return
		}
		_ = callbackPage.Execute(w, map[string]string{"Title": "Authorization successful", "Message": "Return to the terminal."})
		select {
		case codeCh <- code:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("local server error: %w", err)
		}
	}()
	defer srv.Close()

	authURL := conf.AuthCodeURL("bookkeeper", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "\nOpening browser for Google authorization...\n")
	fmt.Fprintf(out, "If the browser doesn't open, visit this URL:\n%s\n\n", authURL)
	openBrowser(authURL)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	return &GoogleCredentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry.Format(time.RFC3339),
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil
}

// GoogleClient returns an HTTP client that refreshes the stored OAuth2
// token as needed.
func GoogleClient(ctx context.Context, creds *GoogleCredentials) *http.Client {
	expiry, _ := time.Parse(time.RFC3339, creds.TokenExpiry)
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       expiry,
		TokenType:    "Bearer",
	}
	conf := googleConfig(creds.ClientID, creds.ClientSecret, "")
	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token))
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}
