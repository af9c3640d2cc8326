package modelbuilder

import (
	"maps"
	"slices"

	"github.com/ritzau/pomreactor/pkg/model"
)

// mergeByKey returns dominant followed by the recessive elements whose key is
// not in dominant
func mergeByKey[T any](dominant, recessive []T, key func(T) string) []T {
	if len(recessive) == 0 {
		return slices.Clone(dominant)
	}
	seen := make(map[string]bool, len(dominant))
	out := make([]T, 0, len(dominant)+len(recessive))
	for _, d := range dominant {
		seen[key(d)] = true
		out = append(out, d)
	}
	for _, r := range recessive {
		if !seen[key(r)] {
			seen[key(r)] = true
			out = append(out, r)
		}
	}
	return out
}

// overlayByKey keeps the order of base, replacing elements that overlay
// redefines with merge(overlay, base) and appending the rest of overlay
func overlayByKey[T any](base, overlay []T, key func(T) string, merge func(dominant, recessive T) T) []T {
	out := slices.Clone(base)
	index := make(map[string]int, len(out))
	for i, b := range out {
		index[key(b)] = i
	}
	for _, o := range overlay {
		if i, ok := index[key(o)]; ok {
			out[i] = merge(o, out[i])
			continue
		}
		index[key(o)] = len(out)
		out = append(out, o)
	}
	return out
}

func replace[T any](dominant, _ T) T { return dominant }

func dependencyKey(d model.Dependency) string { return d.ManagementKey() }

func pluginKey(p model.Plugin) string { return p.Key() }

func extensionKey(e model.Extension) string { return e.GroupID + ":" + e.ArtifactID }

func reportPluginKey(p model.ReportPlugin) string { return p.GroupIDOrDefault() + ":" + p.ArtifactID }

func repositoryKey(r model.Repository) string { return r.ID }

func executionKey(e model.PluginExecution) string {
	if e.ID == "" {
		return "default"
	}
	return e.ID
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// mergePlugin combines two declarations of the same plugin
func mergePlugin(dominant, recessive model.Plugin) model.Plugin {
	out := dominant
	out.GroupID = orDefault(dominant.GroupID, recessive.GroupID)
	out.Version = orDefault(dominant.Version, recessive.Version)
	out.Extensions = orDefault(dominant.Extensions, recessive.Extensions)
	out.Dependencies = mergeByKey(dominant.Dependencies, recessive.Dependencies, dependencyKey)
	out.Executions = overlayByKey(recessive.Executions, dominant.Executions, executionKey, mergeExecution)
	return out
}

func mergeExecution(dominant, recessive model.PluginExecution) model.PluginExecution {
	out := dominant
	out.Phase = orDefault(dominant.Phase, recessive.Phase)
	if len(out.Goals) == 0 {
		out.Goals = recessive.Goals
	}
	return out
}

// mergePlugins puts inherited plugins first, as they are usually bound earlier
func mergePlugins(dominant, recessive []model.Plugin) []model.Plugin {
	return overlayByKey(recessive, dominant, pluginKey, mergePlugin)
}

func mergeProperties(dominant, recessive model.Properties) model.Properties {
	if len(dominant) == 0 && len(recessive) == 0 {
		return nil
	}
	out := make(model.Properties, len(dominant)+len(recessive))
	maps.Copy(out, recessive)
	maps.Copy(out, dominant)
	return out
}

func mergeDependencyManagement(dominant, recessive *model.DependencyManagement) *model.DependencyManagement {
	if dominant == nil && recessive == nil {
		return nil
	}
	var d, r []model.Dependency
	if dominant != nil {
		d = dominant.Dependencies
	}
	if recessive != nil {
		r = recessive.Dependencies
	}
	return &model.DependencyManagement{Dependencies: mergeByKey(d, r, dependencyKey)}
}

// mergeBuild merges build sections, dominant values winning
func mergeBuild(dominant, recessive *model.Build) *model.Build {
	switch {
	case dominant == nil && recessive == nil:
		return nil
	case recessive == nil:
		c := *dominant
		return &c
	case dominant == nil:
		c := *recessive
		return &c
	}

	out := *dominant
	out.SourceDirectory = orDefault(dominant.SourceDirectory, recessive.SourceDirectory)
	out.ScriptSourceDirectory = orDefault(dominant.ScriptSourceDirectory, recessive.ScriptSourceDirectory)
	out.TestSourceDirectory = orDefault(dominant.TestSourceDirectory, recessive.TestSourceDirectory)
	out.OutputDirectory = orDefault(dominant.OutputDirectory, recessive.OutputDirectory)
	out.TestOutputDirectory = orDefault(dominant.TestOutputDirectory, recessive.TestOutputDirectory)
	out.Directory = orDefault(dominant.Directory, recessive.Directory)
	out.FinalName = orDefault(dominant.FinalName, recessive.FinalName)
	out.DefaultGoal = orDefault(dominant.DefaultGoal, recessive.DefaultGoal)
	out.Plugins = mergePlugins(dominant.Plugins, recessive.Plugins)
	out.Extensions = mergeByKey(dominant.Extensions, recessive.Extensions, extensionKey)

	switch {
	case dominant.PluginManagement != nil && recessive.PluginManagement != nil:
		out.PluginManagement = &model.PluginManagement{
			Plugins: mergePlugins(dominant.PluginManagement.Plugins, recessive.PluginManagement.Plugins),
		}
	case dominant.PluginManagement == nil:
		out.PluginManagement = recessive.PluginManagement
	}
	return &out
}

func mergeReporting(dominant, recessive *model.Reporting) *model.Reporting {
	if dominant == nil {
		return recessive
	}
	if recessive == nil {
		return dominant
	}
	return &model.Reporting{Plugins: mergeByKey(dominant.Plugins, recessive.Plugins, reportPluginKey)}
}

func mergeDistributionManagement(dominant, recessive *model.DistributionManagement) *model.DistributionManagement {
	if dominant == nil {
		return recessive
	}
	if recessive == nil {
		return dominant
	}
	out := *dominant
	if out.Repository == nil {
		out.Repository = recessive.Repository
	}
	if out.SnapshotRepository == nil {
		out.SnapshotRepository = recessive.SnapshotRepository
	}
	return &out
}
