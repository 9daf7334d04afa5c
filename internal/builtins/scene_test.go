// ABOUTME: Tests for the scene pack: tree queries and mutations.
// ABOUTME: Covers path resolution, root protection, and no-scene failures.

package builtins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternworks/atelier/internal/tools"
)

func testScene() *Scene {
	return NewScene("res://main.tscn", &SceneNode{
		Name: "Main",
		Type: "Node2D",
		Children: []*SceneNode{
			{
				Name: "Player",
				Type: "CharacterBody2D",
				Children: []*SceneNode{
					{Name: "Sprite", Type: "Sprite2D"},
				},
			},
			{Name: "Camera", Type: "Camera2D"},
		},
	})
}

func newSceneRegistry(t *testing.T, scene *Scene) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry(nil)
	require.NoError(t, reg.RegisterPack(ScenePack(scene)))
	return reg
}

func TestScenePack_Info(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	res := reg.Execute(context.Background(), "get_scene_info", nil)
	require.True(t, res.Success())
	assert.Equal(t, "res://main.tscn", res["scene_name"])

	root := res["root_node"].(map[string]any)
	assert.Equal(t, "Main", root["name"])
	assert.Equal(t, "Node2D", root["type"])
	assert.Equal(t, "Main", root["path"])
	assert.Equal(t, 2, root["child_count"])
}

func TestScenePack_AllNodesPreorder(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	res := reg.Execute(context.Background(), "get_all_nodes", nil)
	require.True(t, res.Success())

	nodes := res["nodes"].([]map[string]any)
	require.Len(t, nodes, 4)

	paths := make([]string, len(nodes))
	for i, n := range nodes {
		paths[i] = n["path"].(string)
	}
	assert.Equal(t, []string{"Main", "Player", "Player/Sprite", "Camera"}, paths)
}

func TestScenePack_SearchByType(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	res := reg.Execute(context.Background(), "search_nodes_by_type", map[string]any{"type": "sprite2d"})
	require.True(t, res.Success())

	nodes := res["nodes"].([]map[string]any)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Player/Sprite", nodes[0]["path"])
}

func TestScenePack_SearchByTypeNoHits(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	res := reg.Execute(context.Background(), "search_nodes_by_type", map[string]any{"type": "AudioStreamPlayer"})
	require.True(t, res.Success())
	assert.Empty(t, res["nodes"])
}

func TestScenePack_SearchByTypeMissingArg(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	res := reg.Execute(context.Background(), "search_nodes_by_type", nil)
	assert.False(t, res.Success())
	assert.Equal(t, "Missing 'type' argument.", res.Message())
}

func TestScenePack_CreateNode(t *testing.T) {
	scene := testScene()
	reg := newSceneRegistry(t, scene)

	res := reg.Execute(context.Background(), "create_node", map[string]any{
		"type":   "CollisionShape2D",
		"name":   "Hitbox",
		"parent": "Player",
	})
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, "Player/Hitbox", res["node_path"])

	check := reg.Execute(context.Background(), "search_nodes_by_type", map[string]any{"type": "CollisionShape2D"})
	require.Len(t, check["nodes"], 1)
}

func TestScenePack_CreateNodeDefaultsToRoot(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	res := reg.Execute(context.Background(), "create_node", map[string]any{
		"type": "Timer",
		"name": "Cooldown",
	})
	require.True(t, res.Success())
	assert.Equal(t, "Cooldown", res["node_path"])
}

func TestScenePack_CreateNodeDuplicateName(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	res := reg.Execute(context.Background(), "create_node", map[string]any{
		"type": "Camera2D",
		"name": "Camera",
	})
	assert.False(t, res.Success())
	assert.Contains(t, res.Message(), "already exists")
}

func TestScenePack_CreateNodeBadParent(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	res := reg.Execute(context.Background(), "create_node", map[string]any{
		"type":   "Node",
		"name":   "X",
		"parent": "Ghost",
	})
	assert.False(t, res.Success())
	assert.Equal(t, "Node not found at path: Ghost", res.Message())
}

func TestScenePack_DeleteNode(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	res := reg.Execute(context.Background(), "delete_node", map[string]any{"path": "Player"})
	require.True(t, res.Success())

	all := reg.Execute(context.Background(), "get_all_nodes", nil)
	assert.Len(t, all["nodes"], 2) // Main and Camera remain
}

func TestScenePack_DeleteRootRejected(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	for _, path := range []string{".", "Main"} {
		res := reg.Execute(context.Background(), "delete_node", map[string]any{"path": path})
		assert.False(t, res.Success())
		assert.Equal(t, "Cannot delete the scene root.", res.Message())
	}
}

func TestScenePack_SetProperty(t *testing.T) {
	scene := testScene()
	reg := newSceneRegistry(t, scene)

	res := reg.Execute(context.Background(), "set_node_property", map[string]any{
		"path":     "Player/Sprite",
		"property": "modulate",
		"value":    "#ff0000",
	})
	require.True(t, res.Success())

	node, _ := scene.find("Player/Sprite")
	require.NotNil(t, node)
	assert.Equal(t, "#ff0000", node.Properties["modulate"])
}

func TestScenePack_SetPropertyMissingValue(t *testing.T) {
	reg := newSceneRegistry(t, testScene())

	res := reg.Execute(context.Background(), "set_node_property", map[string]any{
		"path":     "Camera",
		"property": "zoom",
	})
	assert.False(t, res.Success())
	assert.Contains(t, res.Message(), "'value'")
}

func TestScenePack_NoScene(t *testing.T) {
	reg := newSceneRegistry(t, NewScene("", nil))

	for _, name := range []string{"get_scene_info", "get_all_nodes"} {
		res := reg.Execute(context.Background(), name, nil)
		assert.False(t, res.Success(), name)
		assert.Equal(t, "No scene is currently being edited.", res.Message())
	}
}

func TestScene_JSONRoundTrip(t *testing.T) {
	data, err := testScene().JSON()
	require.NoError(t, err)

	loaded, err := LoadScene(data)
	require.NoError(t, err)

	node, _ := loaded.find("Player/Sprite")
	require.NotNil(t, node)
	assert.Equal(t, "Sprite2D", node.Type)
}
