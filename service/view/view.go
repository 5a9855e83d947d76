package view

// Name identifies one of the application's views.
type Name string

const (
	Connect Name = "connect"
	Create  Name = "create"
	Mint    Name = "mint"
	Send    Name = "send"
	History Name = "history"
)

// View is a routable page.
type View struct {
	Name  Name
	Path  string
	Title string
}

// Views lists every view in navigation order.
var Views = []View{
	{Name: Connect, Path: "/", Title: "Wallet"},
	{Name: Create, Path: "/create-token", Title: "Create Token"},
	{Name: Mint, Path: "/mint-token", Title: "Mint Tokens"},
	{Name: Send, Path: "/send-token", Title: "Send Tokens"},
	{Name: History, Path: "/history", Title: "Transaction History"},
}

// ByPath returns the view served at path. Unknown paths have no view (404).
func ByPath(path string) (View, bool) {
	for _, v := range Views {
		if v.Path == path {
			return v, true
		}
	}
	return View{}, false
}

// ByName returns the view with the given name.
func ByName(name Name) (View, bool) {
	for _, v := range Views {
		if v.Name == name {
			return v, true
		}
	}
	return View{}, false
}

// Theme is the UI color scheme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}
