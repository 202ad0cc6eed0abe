package catalog

// defaultTone is used for characters without an explicit tone.
const defaultTone = "friendly and encouraging"

// Character is a narrator the child can pick.
type Character struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Emoji string `yaml:"emoji" json:"emoji,omitempty"`
	Image string `yaml:"image" json:"image,omitempty"`
	Voice string `yaml:"voice" json:"-"`
	Tone  string `yaml:"tone" json:"-"`
}

// PromptTone returns the tone used when prompting for this character.
func (c Character) PromptTone() string {
	if c.Tone == "" {
		return defaultTone
	}
	return c.Tone
}

// Subject is a topic the child can pick.
type Subject struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Emoji string `yaml:"emoji" json:"emoji,omitempty"`
	Image string `yaml:"image" json:"image,omitempty"`
	// Level is the starting difficulty for new players.
	Level int `yaml:"level" json:"level"`
}

// file is the on-disk shape of a catalog YAML document.
type file struct {
	Characters []Character `yaml:"characters"`
	Subjects   []Subject   `yaml:"subjects"`
}
