package lib

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	NotifyAdded   = "Food added successfully."
	NotifyMissing = "Some data is missing."
)

//go:embed public
var publicFS embed.FS

//go:embed templates/index.html
var indexHTML string

var pageTemplate = template.Must(template.New("index").Parse(indexHTML))

type Notifier interface {
	Notify(message string)
}

// List receives rendered entries in display order.
type List interface {
	Append(entry template.HTML)
}

type EntryView struct {
	Name     string
	Calories string
	Carbs    string
	Protein  string
	Fat      string
}

func NewEntryView(name string, carbs, protein, fat float64) *EntryView {
	return &EntryView{
		Name:     Capitalize(name),
		Calories: FormatNumber(CalculateCalories(carbs, protein, fat)),
		Carbs:    FormatNumber(carbs),
		Protein:  FormatNumber(protein),
		Fat:      FormatNumber(fat),
	}
}

func RenderEntry(view *EntryView) (template.HTML, error) {
	var buf bytes.Buffer
	err := pageTemplate.ExecuteTemplate(&buf, "entry", view)
	if err != nil {
		Logger.Println("error:", err)
		return "", err
	}
	return template.HTML(buf.String()), nil
}

type Form struct {
	Name    string
	Carbs   string
	Protein string
	Fat     string
}

func FormFromRequest(r *http.Request) *Form {
	return &Form{
		Name:    r.PostFormValue("name"),
		Carbs:   r.PostFormValue("carbs"),
		Protein: r.PostFormValue("protein"),
		Fat:     r.PostFormValue("fat"),
	}
}

func (f *Form) Clear() {
	*f = Form{}
}

type FormController struct {
	API    *Client
	List   List
	Notify Notifier
	Table  string
}

// Submit creates an entry from the form. On success the entry is appended to
// the list and the form cleared. On failure the form is left as it was.
func (c *FormController) Submit(ctx context.Context, form *Form) bool {
	name := strings.TrimSpace(form.Name)
	var grams []float64
	for _, value := range []string{form.Carbs, form.Protein, form.Fat} {
		g, err := ParseGrams(value)
		if err != nil {
			Logger.Println("error:", err)
			c.Notify.Notify(NotifyMissing)
			return false
		}
		grams = append(grams, g)
	}
	if name == "" {
		c.Notify.Notify(NotifyMissing)
		return false
	}
	carbs, protein, fat := grams[0], grams[1], grams[2]
	req := &EntryRequest{Fields: NewEntryFields(name, FormatNumber(carbs), FormatNumber(protein), FormatNumber(fat))}
	resp := c.API.Post(ctx, CollectionPath(c.Table), req)
	if resp == nil || resp.Error != "" {
		if resp != nil {
			Logger.Println("error:", resp.StatusCode, resp.Error)
		}
		c.Notify.Notify(NotifyMissing)
		return false
	}
	entry, err := RenderEntry(NewEntryView(name, carbs, protein, fat))
	if err != nil {
		c.Notify.Notify(NotifyMissing)
		return false
	}
	c.List.Append(entry)
	c.Notify.Notify(NotifyAdded)
	form.Clear()
	return true
}

type ListLoader struct {
	API   *Client
	List  List
	Table string
}

// Load renders every entry of one scan and returns how many were rendered.
func (l *ListLoader) Load(ctx context.Context) int {
	resp := l.API.Get(ctx, CollectionPath(l.Table))
	if resp == nil {
		return 0
	}
	if resp.Error != "" {
		Logger.Println("error:", resp.StatusCode, resp.Error)
		return 0
	}
	count := 0
	for _, item := range resp.Items {
		entry, err := item.Entry(l.Table)
		if err != nil {
			continue
		}
		html, err := RenderEntry(NewEntryView(entry.Name, entry.Carbs, entry.Protein, entry.Fat))
		if err != nil {
			continue
		}
		l.List.Append(html)
		count++
	}
	return count
}

// Page is the state of one render of the app page.
type Page struct {
	Entries []template.HTML
	Message string
	Form    *Form
}

func (p *Page) Append(entry template.HTML) {
	p.Entries = append(p.Entries, entry)
}

func (p *Page) Notify(message string) {
	p.Message = message
}

type WebServer struct {
	api   *Client
	table string
}

// NewWebServer serves the app page at / and the static assets beside it.
func NewWebServer(api *Client, table string) http.Handler {
	s := &WebServer{api: api, table: table}
	public, err := fs.Sub(publicFS, "public")
	if err != nil {
		panic(err)
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	r.Get("/", s.index)
	r.Post("/", s.submit)
	r.Handle("/*", http.FileServer(http.FS(public)))
	return r
}

// notifyParam carries the outcome of a submit across its redirect.
const notifyParam = "notify"

var notifyMessages = map[string]string{
	"added": NotifyAdded,
}

func (s *WebServer) index(w http.ResponseWriter, r *http.Request) {
	page := &Page{Form: &Form{}, Message: notifyMessages[r.URL.Query().Get(notifyParam)]}
	loader := &ListLoader{API: s.api, List: page, Table: s.table}
	loader.Load(r.Context())
	s.render(w, page)
}

// submit redirects to the list once the entry is added, so a reload does not
// add it twice. A failed submit renders in place to keep the fields.
func (s *WebServer) submit(w http.ResponseWriter, r *http.Request) {
	page := &Page{Form: FormFromRequest(r)}
	controller := &FormController{API: s.api, List: page, Notify: page, Table: s.table}
	if controller.Submit(r.Context(), page.Form) {
		http.Redirect(w, r, "/?"+notifyParam+"=added", http.StatusSeeOther)
		return
	}
	loader := &ListLoader{API: s.api, List: page, Table: s.table}
	loader.Load(r.Context())
	s.render(w, page)
}

func (s *WebServer) render(w http.ResponseWriter, page *Page) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, page)
	if err != nil {
		Logger.Println("error:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
