// Package builtins provides the built-in tool packs.
//
// # Overview
//
// Built-in tools are local operations the assistant can call without
// any external service. They run in-process, synchronously, and return
// structured results that become tool-role messages in the
// conversation.
//
// # Tool Packs
//
// The package provides 2 packs with 9 tools:
//
// Files Pack (builtin:files) - rooted at a project directory:
//
//   - list_project_files: List files and directories under a path
//   - read_file_content: Read a file's content, optionally by line range
//   - search_project_files: Search file contents for a query string
//
// Scene Pack (builtin:scene) - operates on a scene document:
//
//   - get_scene_info: Scene name and root node summary
//   - get_all_nodes: Every node in the scene, preorder
//   - search_nodes_by_type: Nodes matching a type name
//   - create_node: Add a node under a parent
//   - delete_node: Remove a node and its subtree
//   - set_node_property: Set a property on a node
//
// # Argument Decoding
//
// Handlers receive the parsed argument map from the tool call and
// decode it with mapstructure. Missing required arguments fail the
// call with a descriptive message rather than an error; tool failures
// are data, not control flow.
package builtins
