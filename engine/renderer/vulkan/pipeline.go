package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

// PipelineConfig gathers the fixed function state of a graphics pipeline. Start from
// DefaultPipelineConfig and override what differs.
type PipelineConfig struct {
	BindingDescriptions   []vk.VertexInputBindingDescription
	AttributeDescriptions []vk.VertexInputAttributeDescription

	InputAssembly        vk.PipelineInputAssemblyStateCreateInfo
	Rasterization        vk.PipelineRasterizationStateCreateInfo
	Multisample          vk.PipelineMultisampleStateCreateInfo
	ColorBlendAttachment vk.PipelineColorBlendAttachmentState
	DepthStencil         vk.PipelineDepthStencilStateCreateInfo
	DynamicStates        []vk.DynamicState

	PipelineLayout vk.PipelineLayout
	RenderPass     vk.RenderPass
	Subpass        uint32
}

// DefaultPipelineConfig fills config with triangle lists, no culling, depth testing and
// dynamic viewport and scissor. Vertex input is left empty.
func DefaultPipelineConfig(config *PipelineConfig) {
	config.InputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	config.Rasterization = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
	}

	config.Multisample = vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	config.ColorBlendAttachment = vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}

	config.DepthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
		StencilTestEnable:     vk.False,
	}

	config.DynamicStates = []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
}

// EnableAlphaBlending turns on straight alpha blending for the color attachment.
func EnableAlphaBlending(config *PipelineConfig) {
	config.ColorBlendAttachment.BlendEnable = vk.True
	config.ColorBlendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
	config.ColorBlendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	config.ColorBlendAttachment.ColorBlendOp = vk.BlendOpAdd
	config.ColorBlendAttachment.SrcAlphaBlendFactor = vk.BlendFactorOne
	config.ColorBlendAttachment.DstAlphaBlendFactor = vk.BlendFactorZero
	config.ColorBlendAttachment.AlphaBlendOp = vk.BlendOpAdd
}

// NewPipelineLayout creates a layout from descriptor set layouts and push constant ranges.
func NewPipelineLayout(device PipelineDevice, setLayouts []vk.DescriptorSetLayout, pushConstantRanges []vk.PushConstantRange) (vk.PipelineLayout, error) {
	// NOTE: Vulkan only guarantees 128 bytes of push constants, with 4-byte alignment.
	if len(pushConstantRanges) > 32 {
		return nil, errors.Newf("cannot have more than 32 push constant ranges, got %d", len(pushConstantRanges))
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pushConstantRanges)),
		PPushConstantRanges:    pushConstantRanges,
	}
	layout, err := device.CreatePipelineLayout(&info)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return layout, nil
}

// Pipeline is a graphics pipeline with its vertex and fragment shader modules.
type Pipeline struct {
	Handle vk.Pipeline

	device             PipelineDevice
	vertexShaderModule vk.ShaderModule
	fragShaderModule   vk.ShaderModule
}

func NewGraphicsPipeline(device PipelineDevice, vertCode, fragCode []uint32, config *PipelineConfig) (*Pipeline, error) {
	if config.PipelineLayout == nil {
		return nil, errors.New("cannot create graphics pipeline: no pipeline layout provided in config")
	}
	if config.RenderPass == nil {
		return nil, errors.New("cannot create graphics pipeline: no render pass provided in config")
	}

	p := &Pipeline{device: device}

	var err error
	if p.vertexShaderModule, err = device.CreateShaderModule(vertCode); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if p.fragShaderModule, err = device.CreateShaderModule(fragCode); err != nil {
		core.LogError(err.Error())
		p.Destroy()
		return nil, err
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		NewShaderStage(vk.ShaderStageVertexBit, p.vertexShaderModule),
		NewShaderStage(vk.ShaderStageFragmentBit, p.fragShaderModule),
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(config.BindingDescriptions)),
		PVertexBindingDescriptions:      config.BindingDescriptions,
		VertexAttributeDescriptionCount: uint32(len(config.AttributeDescriptions)),
		PVertexAttributeDescriptions:    config.AttributeDescriptions,
	}

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{config.ColorBlendAttachment},
	}

	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(config.DynamicStates)),
		PDynamicStates:    config.DynamicStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &config.InputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &config.Rasterization,
		PMultisampleState:   &config.Multisample,
		PDepthStencilState:  &config.DepthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              config.PipelineLayout,
		RenderPass:          config.RenderPass,
		Subpass:             config.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	handle, err := device.CreateGraphicsPipeline(&info)
	if err != nil {
		core.LogError(err.Error())
		p.Destroy()
		return nil, err
	}
	p.Handle = handle

	core.LogDebug("Graphics pipeline created!")
	return p, nil
}

func (p *Pipeline) Bind(device CommandDevice, cb vk.CommandBuffer) {
	device.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, p.Handle)
}

func (p *Pipeline) Destroy() {
	if p.vertexShaderModule != nil {
		p.device.DestroyShaderModule(p.vertexShaderModule)
		p.vertexShaderModule = nil
	}
	if p.fragShaderModule != nil {
		p.device.DestroyShaderModule(p.fragShaderModule)
		p.fragShaderModule = nil
	}
	if p.Handle != nil {
		p.device.DestroyPipeline(p.Handle)
		p.Handle = nil
	}
}
