package lua

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	lua "github.com/yuin/gopher-lua"
)

const luaSelectionTypeName = "html_selection"

// HTMLModule gives scripts CSS selector access to markup through goquery. Parsed
// documents and elements share one userdata type, so every function accepts either.
type HTMLModule struct{}

func NewHTMLModule() *HTMLModule {
	return &HTMLModule{}
}

func (h *HTMLModule) Name() string {
	return "html"
}

func (h *HTMLModule) Register(L *lua.LState) error {
	funcs := map[string]lua.LGFunction{
		"select":     h.selectAll,
		"select_one": h.selectOne,
		"text":       h.text,
		"attr":       h.attr,
		"html":       h.html,
	}

	mt := L.NewTypeMetatable(luaSelectionTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), funcs))

	htmlTable := L.SetFuncs(L.NewTable(), funcs)
	L.SetField(htmlTable, "parse", L.NewFunction(h.parse))
	L.SetField(htmlTable, "absolute", L.NewFunction(h.absolute))

	L.SetGlobal(h.Name(), htmlTable)
	return nil
}

func (h *HTMLModule) push(L *lua.LState, sel *goquery.Selection) {
	ud := L.NewUserData()
	ud.Value = sel
	L.SetMetatable(ud, L.GetTypeMetatable(luaSelectionTypeName))
	L.Push(ud)
}

func (h *HTMLModule) check(L *lua.LState, n int) *goquery.Selection {
	ud := L.CheckUserData(n)
	sel, ok := ud.Value.(*goquery.Selection)
	if !ok {
		L.ArgError(n, "expected html selection")
	}
	return sel
}

func (h *HTMLModule) parse(L *lua.LState) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(L.CheckString(1)))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("failed to parse HTML: " + err.Error()))
		return 2
	}
	h.push(L, doc.Selection)
	return 1
}

func (h *HTMLModule) selectAll(L *lua.LState) int {
	sel := h.check(L, 1)
	selector := L.CheckString(2)

	elements := L.NewTable()
	sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		ud := L.NewUserData()
		ud.Value = s
		L.SetMetatable(ud, L.GetTypeMetatable(luaSelectionTypeName))
		elements.Append(ud)
	})

	L.Push(elements)
	return 1
}

func (h *HTMLModule) selectOne(L *lua.LState) int {
	found := h.check(L, 1).Find(L.CheckString(2)).First()
	if found.Length() == 0 {
		L.Push(lua.LNil)
		return 1
	}
	h.push(L, found)
	return 1
}

func (h *HTMLModule) text(L *lua.LState) int {
	text := strings.Join(strings.Fields(h.check(L, 1).Text()), " ")
	L.Push(lua.LString(text))
	return 1
}

func (h *HTMLModule) attr(L *lua.LState) int {
	value, ok := h.check(L, 1).Attr(L.CheckString(2))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(value))
	return 1
}

func (h *HTMLModule) html(L *lua.LState) int {
	markup, err := h.check(L, 1).Html()
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("failed to get HTML: " + err.Error()))
		return 2
	}
	L.Push(lua.LString(markup))
	return 1
}

// absolute resolves href against base, returning href unchanged when either fails to parse.
func (h *HTMLModule) absolute(L *lua.LState) int {
	base, href := L.CheckString(1), L.CheckString(2)

	baseURL, err := url.Parse(base)
	if err != nil {
		L.Push(lua.LString(href))
		return 1
	}
	ref, err := url.Parse(href)
	if err != nil {
		L.Push(lua.LString(href))
		return 1
	}
	L.Push(lua.LString(baseURL.ResolveReference(ref).String()))
	return 1
}
