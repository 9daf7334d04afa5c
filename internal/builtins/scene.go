// ABOUTME: Scene pack lets the assistant inspect and edit a scene document.
// ABOUTME: The scene is a named tree of typed nodes with property maps.

package builtins

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/lanternworks/atelier/internal/tools"
)

// SceneNode is one node in the scene tree.
type SceneNode struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Children   []*SceneNode   `json:"children,omitempty"`
}

// Scene is the document the scene pack operates on. All tool access
// goes through the pack handlers, which serialize on the internal
// mutex.
type Scene struct {
	mu   sync.Mutex
	name string
	root *SceneNode
}

// NewScene creates a scene with the given name and root node. A nil
// root models "no scene open"; every tool then fails with a message.
func NewScene(name string, root *SceneNode) *Scene {
	return &Scene{name: name, root: root}
}

// sceneDocument is the JSON shape of a persisted scene.
type sceneDocument struct {
	SceneName string     `json:"scene_name"`
	Root      *SceneNode `json:"root"`
}

// LoadScene parses a scene document from JSON.
func LoadScene(data []byte) (*Scene, error) {
	var doc sceneDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &Scene{name: doc.SceneName, root: doc.Root}, nil
}

// JSON serializes the scene document.
func (s *Scene) JSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(sceneDocument{SceneName: s.name, Root: s.root}, "", "  ")
}

// ScenePack creates the scene pack bound to one scene document.
func ScenePack(scene *Scene) *tools.Pack {
	h := &sceneHandlers{scene: scene}
	return &tools.Pack{
		ID: "builtin:scene",
		Tools: []*tools.Tool{
			{
				Name:        "get_scene_info",
				Description: "Get the scene name and root node summary",
				InputSchema: `{"type":"object","properties":{}}`,
				Handler:     h.Info,
			},
			{
				Name:        "get_all_nodes",
				Description: "List every node in the scene",
				InputSchema: `{"type":"object","properties":{}}`,
				Handler:     h.AllNodes,
			},
			{
				Name:        "search_nodes_by_type",
				Description: "Find nodes whose type matches",
				InputSchema: `{"type":"object","properties":{"type":{"type":"string"}},"required":["type"]}`,
				Handler:     h.SearchByType,
			},
			{
				Name:        "create_node",
				Description: "Create a node under a parent",
				InputSchema: `{"type":"object","properties":{"type":{"type":"string"},"name":{"type":"string"},"parent":{"type":"string"}},"required":["type","name"]}`,
				Handler:     h.Create,
			},
			{
				Name:        "delete_node",
				Description: "Delete a node and its subtree",
				InputSchema: `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`,
				Handler:     h.Delete,
			},
			{
				Name:        "set_node_property",
				Description: "Set a property on a node",
				InputSchema: `{"type":"object","properties":{"path":{"type":"string"},"property":{"type":"string"},"value":{}},"required":["path","property","value"]}`,
				Handler:     h.SetProperty,
			},
		},
	}
}

type sceneHandlers struct {
	scene *Scene
}

const noSceneMessage = "No scene is currently being edited."

// nodeInfo is the summary shape returned for each node. Paths are
// relative to the root; the root's own path is its name.
func (s *Scene) nodeInfo(node *SceneNode, relPath string) map[string]any {
	p := relPath
	if p == "" {
		p = node.Name
	}
	return map[string]any{
		"name":        node.Name,
		"type":        node.Type,
		"path":        p,
		"child_count": len(node.Children),
	}
}

// find resolves a root-relative path. "." and the root's name both
// address the root. Returns the node and its parent (nil for root).
func (s *Scene) find(path string) (node, parent *SceneNode) {
	if s.root == nil {
		return nil, nil
	}
	if path == "." || path == s.root.Name {
		return s.root, nil
	}
	current := s.root
	var par *SceneNode
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			return nil, nil
		}
		var next *SceneNode
		for _, child := range current.Children {
			if child.Name == part {
				next = child
				break
			}
		}
		if next == nil {
			return nil, nil
		}
		par = current
		current = next
	}
	return current, par
}

func (h *sceneHandlers) Info(ctx context.Context, args map[string]any) tools.Result {
	s := h.scene
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return tools.Fail(noSceneMessage)
	}
	return tools.OK("Scene info").
		With("scene_name", s.name).
		With("root_node", s.nodeInfo(s.root, ""))
}

func (h *sceneHandlers) AllNodes(ctx context.Context, args map[string]any) tools.Result {
	s := h.scene
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return tools.Fail(noSceneMessage)
	}
	nodes := []map[string]any{}
	s.walk(s.root, "", func(n *SceneNode, relPath string) {
		nodes = append(nodes, s.nodeInfo(n, relPath))
	})
	return tools.OK("All nodes").With("nodes", nodes)
}

// walk visits the tree preorder, passing each node's root-relative
// path (empty for the root itself).
func (s *Scene) walk(node *SceneNode, relPath string, visit func(*SceneNode, string)) {
	visit(node, relPath)
	for _, child := range node.Children {
		childPath := child.Name
		if relPath != "" {
			childPath = relPath + "/" + child.Name
		}
		s.walk(child, childPath, visit)
	}
}

type searchNodesInput struct {
	Type string `mapstructure:"type"`
}

func (h *sceneHandlers) SearchByType(ctx context.Context, args map[string]any) tools.Result {
	var in searchNodesInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Fail(err.Error())
	}
	if in.Type == "" {
		return tools.Fail("Missing 'type' argument.")
	}

	s := h.scene
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := []map[string]any{}
	if s.root != nil {
		s.walk(s.root, "", func(n *SceneNode, relPath string) {
			if strings.EqualFold(n.Type, in.Type) {
				nodes = append(nodes, s.nodeInfo(n, relPath))
			}
		})
	}
	return tools.OK("Search complete").With("nodes", nodes)
}

type createNodeInput struct {
	Type   string `mapstructure:"type"`
	Name   string `mapstructure:"name"`
	Parent string `mapstructure:"parent"`
}

func (h *sceneHandlers) Create(ctx context.Context, args map[string]any) tools.Result {
	var in createNodeInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Fail(err.Error())
	}
	if in.Type == "" || in.Name == "" {
		return tools.Fail("Missing 'type' or 'name' argument.")
	}
	if strings.Contains(in.Name, "/") {
		return tools.Fail("Node names cannot contain '/'.")
	}

	s := h.scene
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return tools.Fail(noSceneMessage)
	}

	parent := s.root
	parentPath := ""
	if in.Parent != "" {
		node, _ := s.find(in.Parent)
		if node == nil {
			return tools.Fail("Node not found at path: " + in.Parent)
		}
		parent = node
		if node != s.root {
			parentPath = in.Parent
		}
	}
	for _, child := range parent.Children {
		if child.Name == in.Name {
			return tools.Fail("A node named '" + in.Name + "' already exists under that parent.")
		}
	}

	node := &SceneNode{Name: in.Name, Type: in.Type, Properties: map[string]any{}}
	parent.Children = append(parent.Children, node)

	nodePath := in.Name
	if parentPath != "" {
		nodePath = parentPath + "/" + in.Name
	}
	return tools.OK("Node created successfully.").With("node_path", nodePath)
}

type deleteNodeInput struct {
	Path string `mapstructure:"path"`
}

func (h *sceneHandlers) Delete(ctx context.Context, args map[string]any) tools.Result {
	var in deleteNodeInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Fail(err.Error())
	}
	if in.Path == "" {
		return tools.Fail("Missing 'path' argument.")
	}

	s := h.scene
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return tools.Fail(noSceneMessage)
	}
	node, parent := s.find(in.Path)
	if node == nil {
		return tools.Fail("Node not found at path: " + in.Path)
	}
	if parent == nil {
		return tools.Fail("Cannot delete the scene root.")
	}
	for i, child := range parent.Children {
		if child == node {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
	return tools.OK("Node deleted successfully.")
}

type setPropertyInput struct {
	Path     string `mapstructure:"path"`
	Property string `mapstructure:"property"`
	Value    any    `mapstructure:"value"`
}

func (h *sceneHandlers) SetProperty(ctx context.Context, args map[string]any) tools.Result {
	var in setPropertyInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Fail(err.Error())
	}
	if in.Path == "" || in.Property == "" {
		return tools.Fail("Missing 'path' or 'property' argument.")
	}
	if _, ok := args["value"]; !ok {
		return tools.Fail("Missing 'path', 'property', or 'value' argument.")
	}

	s := h.scene
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return tools.Fail(noSceneMessage)
	}
	node, _ := s.find(in.Path)
	if node == nil {
		return tools.Fail("Node not found at path: " + in.Path)
	}
	if node.Properties == nil {
		node.Properties = map[string]any{}
	}
	node.Properties[in.Property] = in.Value
	return tools.OK("Property '" + in.Property + "' set on " + node.Name + ".")
}
