// Package factory builds pluggable modules (metrics sinks, plan log stores)
// from configuration. Each module is registered under a type name and receives
// its raw settings map, which it decodes with Decode.
//
//	stores := factory.NewRegistry[logging.LogStore]()
//	_ = stores.Register("jsonl", func(conf map[string]any) (logging.LogStore, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return logging.NewJSONLStore(c.Path)
//	})
package factory
