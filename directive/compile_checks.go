package directive

var _ Handler = HandlerFunc(nil)
