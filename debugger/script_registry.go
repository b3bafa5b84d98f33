package debugger

import (
	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// scriptRegistry 按id和URL索引脚本
// 同一个URL下可能有多个脚本，比如页面里的多个内联脚本，按注册顺序保存
type scriptRegistry struct {
	byID  *linkedhashmap.Map
	byURL map[string]*arraylist.List
}

func newScriptRegistry() *scriptRegistry {
	return &scriptRegistry{
		byID:  linkedhashmap.New(),
		byURL: map[string]*arraylist.List{},
	}
}

func (r *scriptRegistry) register(script *Script) {
	r.byID.Put(script.ScriptID, script)
	if script.IsAnonymousScript() {
		return
	}
	scripts, ok := r.byURL[script.SourceURL]
	if !ok {
		scripts = arraylist.New()
		r.byURL[script.SourceURL] = scripts
	}
	scripts.Add(script)
}

func (r *scriptRegistry) forID(scriptID string) *Script {
	value, ok := r.byID.Get(scriptID)
	if !ok {
		return nil
	}
	return value.(*Script)
}

func (r *scriptRegistry) forURL(sourceURL string) []*Script {
	if sourceURL == "" {
		return nil
	}
	scripts, ok := r.byURL[sourceURL]
	if !ok {
		return nil
	}
	answer := make([]*Script, 0, scripts.Size())
	scripts.Each(func(_ int, value interface{}) {
		answer = append(answer, value.(*Script))
	})
	return answer
}

// all 按注册顺序返回所有脚本
func (r *scriptRegistry) all() []*Script {
	answer := make([]*Script, 0, r.byID.Size())
	it := r.byID.Iterator()
	for it.Next() {
		answer = append(answer, it.Value().(*Script))
	}
	return answer
}

func (r *scriptRegistry) size() int {
	return r.byID.Size()
}

func (r *scriptRegistry) clear() {
	r.byID.Clear()
	r.byURL = map[string]*arraylist.List{}
}
