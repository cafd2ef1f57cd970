package chat

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed emoji.yaml
var emojiTableYAML []byte

// emojiTable maps display emoji to the remote system's canonical
// reaction-kind names and back. Unknown values pass through as their
// literal form in both directions.
type emojiTable struct {
	nameToEmoji map[string]string
	emojiToName map[string]string
}

var reactionTable = mustLoadEmojiTable()

func mustLoadEmojiTable() *emojiTable {
	var file struct {
		Reactions []struct {
			Name  string `yaml:"name"`
			Emoji string `yaml:"emoji"`
		} `yaml:"reactions"`
	}

	if err := yaml.Unmarshal(emojiTableYAML, &file); err != nil {
		panic(fmt.Sprintf("chat: embedded emoji table is invalid: %v", err))
	}

	t := &emojiTable{
		nameToEmoji: make(map[string]string, len(file.Reactions)),
		emojiToName: make(map[string]string, len(file.Reactions)),
	}

	for _, r := range file.Reactions {
		if r.Name == "" || r.Emoji == "" {
			panic(fmt.Sprintf("chat: embedded emoji table entry %q/%q is incomplete", r.Name, r.Emoji))
		}

		t.nameToEmoji[r.Name] = r.Emoji

		// First name listed for an emoji is the canonical one.
		if _, ok := t.emojiToName[r.Emoji]; !ok {
			t.emojiToName[r.Emoji] = r.Name
		}
	}

	return t
}

// CanonicalEmojiName maps a display emoji to the remote reaction-kind
// name. Unknown emoji pass through as their literal form.
func CanonicalEmojiName(emoji string) string {
	if name, ok := reactionTable.emojiToName[emoji]; ok {
		return name
	}

	return emoji
}

// DisplayEmoji maps a remote reaction-kind name back to the emoji shown in
// the UI. Unknown names pass through as their literal form.
func DisplayEmoji(name string) string {
	if emoji, ok := reactionTable.nameToEmoji[name]; ok {
		return emoji
	}

	return name
}
